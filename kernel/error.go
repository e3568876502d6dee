package kernel

// Error describes a kernel error. Kernel errors are declared as package-level
// pointers to Error so that they can be returned from interrupt context
// without allocating.
type Error struct {
	// The module where the error occurred.
	Module string

	// The error message
	Message string
}

// Error implements the error interface. The returned string is prefixed
// with the name of the module that raised the error.
func (e *Error) Error() string {
	if e.Module == "" {
		return e.Message
	}

	return "[" + e.Module + "] " + e.Message
}
