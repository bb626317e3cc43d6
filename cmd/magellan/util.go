package main

import (
	"fmt"
	"strconv"
)

func parseInt(s string) (int, error) {
	return strconv.Atoi(s)
}

func errArgs(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
