package ui

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
)

var (
	errorColor   = color.New(color.FgRed)
	successColor = color.New(color.FgGreen)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgBlue)
)

// console reads answers line by line and writes colored messages.
type console struct {
	in  *bufio.Scanner
	out io.Writer
}

func newConsole(in io.Reader, out io.Writer) *console {
	return &console{in: bufio.NewScanner(in), out: out}
}

// PrintWarning displays a warning message with consistent formatting
func (c *console) PrintWarning(message string) {
	warningColor.Fprintf(c.out, "\nWarning:\n%s\n", message)
}

// PrintError displays an error message with consistent formatting
func (c *console) PrintError(message string) {
	errorColor.Fprintf(c.out, "\nError: %s\n", message)
}

// PrintSuccess displays a success message with consistent formatting
func (c *console) PrintSuccess(message string) {
	successColor.Fprintf(c.out, "\n%s\n", message)
}

// PrintInfo displays an info message with consistent formatting
func (c *console) PrintInfo(message string) {
	infoColor.Fprint(c.out, message)
}

// ReadString reads one trimmed line. ok is false once input is exhausted.
func (c *console) ReadString(prompt string) (string, bool) {
	c.PrintInfo(prompt)
	if !c.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.in.Text()), true
}

// ReadInt reads an integer from stdin with validation
func (c *console) ReadInt(prompt string, min, max int) (int, error) {
	input, ok := c.ReadString(prompt)
	if !ok {
		return 0, io.EOF
	}
	value, err := strconv.Atoi(input)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %s", input)
	}
	if value < min || value > max {
		return 0, fmt.Errorf("value must be between %d and %d", min, max)
	}
	return value, nil
}

// ReadFloat reads a finite number from stdin
func (c *console) ReadFloat(prompt string) (float64, error) {
	input, ok := c.ReadString(prompt)
	if !ok {
		return 0, io.EOF
	}
	value, err := strconv.ParseFloat(input, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %s", input)
	}
	return value, nil
}
