package kernel

// Error describes a kernel error. Kernel code runs without the Go allocator
// so errors cannot be created with errors.New; all kernel errors are declared
// as package-level pointers to an Error and compared by identity.
type Error struct {
	// The module where the error occurred.
	Module string

	// The error message
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}
