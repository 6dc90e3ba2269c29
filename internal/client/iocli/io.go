// Package iocli is the console boundary of the CLI.
package iocli

//go:generate moq -out io_mock.go . IO

// IO is what commands use to talk to the user
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	ReadInput(prompt string) (string, error)
	ReadPassword(prompt string) (string, error)
	Write(p []byte) (n int, err error)
}
