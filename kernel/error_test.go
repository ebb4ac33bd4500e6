package kernel

import "testing"

func TestKernelError(t *testing.T) {
	err := &Error{
		Module:  "vmm",
		Message: "virtual address does not point to a mapped physical page",
	}

	if err.Error() != err.Message {
		t.Fatalf("expected err.Error() to return %q; got %q", err.Message, err.Error())
	}
}
