package uid

import "fmt"

// MismatchError reports a stored identity that does not match the identity
// recomputed from the currently loaded weights. It is fatal to the model load
// and is never retried; re-verification requires an explicit reload.
type MismatchError struct {
	Name     string
	Stored   Identity
	Computed Identity
}

func (e *MismatchError) Error() string {
	if e.Stored.Type != e.Computed.Type {
		return fmt.Sprintf("uid mismatch for %q: stored %s uid cannot be verified with %s",
			e.Name, e.Stored.Type, e.Computed.Type)
	}
	return fmt.Sprintf("uid mismatch for %q: stored %s, computed %s (%s)",
		e.Name, e.Stored.UID, e.Computed.UID, e.Computed.Type)
}

// Verify recomputes the identity of w and compares it with stored.
func Verify(g Generator, name string, stored Identity, w WeightMap) error {
	computed, err := Identify(g, w)
	if err != nil {
		return fmt.Errorf("verify %q: %w", name, err)
	}
	if stored.Type != computed.Type || stored.UID != computed.UID {
		return &MismatchError{Name: name, Stored: stored, Computed: computed}
	}
	return nil
}
