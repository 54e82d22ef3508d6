package probe

import "io"

func errEOF() error           { return io.EOF }
func errUnexpectedEOF() error { return io.ErrUnexpectedEOF }
