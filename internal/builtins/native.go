package builtins

import "math"

func runSqrt(h Host) error {
	h.PushF64(math.Sqrt(h.PopF64()))
	return nil
}

func popCharSpan(h Host) ([]byte, error) {
	size := h.PopU64()
	addr := h.PopU64()
	return h.Bytes(addr, size)
}

func runFopen(h Host) error {
	mode, err := popCharSpan(h)
	if err != nil {
		return err
	}
	path, err := popCharSpan(h)
	if err != nil {
		return err
	}
	handle, err := h.OpenFile(string(path), string(mode))
	if err != nil {
		// Mirrors fopen semantics: failure yields a zero handle, not a fault.
		handle = 0
	}
	h.PushU64(handle)
	return nil
}

func runFclose(h Host) error {
	if err := h.CloseFile(h.PopU64()); err != nil {
		return err
	}
	h.PushByte(0) // returns null
	return nil
}

func runFputs(h Host) error {
	data, err := popCharSpan(h)
	if err != nil {
		return err
	}
	if err := h.PutsFile(h.PopU64(), data); err != nil {
		return err
	}
	h.PushByte(0) // returns null
	return nil
}
