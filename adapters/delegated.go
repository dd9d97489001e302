package adapters

import "github.com/INLOpen/sbr/core"

// DelegatedAdapter exposes another adapter under a different tag. Types that
// share an encoding with an existing type (for example a text view recorded
// as a plain string) register one of these instead of a new codec.
type DelegatedAdapter struct {
	tag      string
	delegate TypeAdapter
}

var _ TypeAdapter = (*DelegatedAdapter)(nil)

// NewDelegatedAdapter creates an adapter for tag that encodes with delegate.
func NewDelegatedAdapter(tag string, delegate TypeAdapter) *DelegatedAdapter {
	return &DelegatedAdapter{tag: tag, delegate: delegate}
}

func (a *DelegatedAdapter) Tag() string { return a.tag }

func (a *DelegatedAdapter) Serialize(value core.TypedValue) ([]byte, error) {
	return a.delegate.Serialize(value)
}

func (a *DelegatedAdapter) Deserialize(buf []byte, pos int) (core.TypedValue, int, error) {
	return a.delegate.Deserialize(buf, pos)
}

func (a *DelegatedAdapter) SerializedSize(value core.TypedValue) (int, error) {
	return a.delegate.SerializedSize(value)
}

// Close does not close the delegate; it stays registered under its own tag.
func (a *DelegatedAdapter) Close() error { return nil }
