package gpio

import "testing"

func TestMockDriver_DefaultsHigh(t *testing.T) {
	m := &MockDriver{}
	lvl, err := m.ReadPin(24)
	if err != nil {
		t.Fatalf("ReadPin: %v", err)
	}
	if lvl != High {
		t.Errorf("unset pin should read High (idle pull-up), got %v", lvl)
	}
}

func TestMockDriver_PullDownIdlesLow(t *testing.T) {
	m := &MockDriver{}
	if err := m.SetupInput(17, PullDown); err != nil {
		t.Fatalf("SetupInput: %v", err)
	}
	if lvl, _ := m.ReadPin(17); lvl != Low {
		t.Errorf("pull-down pin should idle Low, got %v", lvl)
	}
}

func TestMockDriver_Set(t *testing.T) {
	m := &MockDriver{}
	m.Set(24, Low)
	if lvl, _ := m.ReadPin(24); lvl != Low {
		t.Errorf("after Set(Low) got %v", lvl)
	}
	m.Set(24, High)
	if lvl, _ := m.ReadPin(24); lvl != High {
		t.Errorf("after Set(High) got %v", lvl)
	}
}

func TestLevelString(t *testing.T) {
	if High.String() != "high" || Low.String() != "low" {
		t.Errorf("got %q/%q", High, Low)
	}
}

func TestNewDriver_Mock(t *testing.T) {
	d, err := NewDriver(true)
	if err != nil {
		t.Fatalf("NewDriver(mock): %v", err)
	}
	if _, ok := d.(*MockDriver); !ok {
		t.Errorf("expected *MockDriver, got %T", d)
	}
	if err := d.SetupInput(24, PullUp); err != nil {
		t.Errorf("SetupInput: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
