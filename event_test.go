package necsimgo

import "testing"

func TestEventKindString(t *testing.T) {
	if got, want := Speciation.String(), "speciation"; got != want {
		t.Errorf("Speciation.String() = %q, want %q", got, want)
	}
	if got, want := Dispersal.String(), "dispersal"; got != want {
		t.Errorf("Dispersal.String() = %q, want %q", got, want)
	}
	if got, want := EventKind(255).String(), "unknown"; got != want {
		t.Errorf("EventKind(255).String() = %q, want %q", got, want)
	}
}

func TestEventIsSpeciationAndIsCoalescence(t *testing.T) {
	spec := Event{Kind: Speciation}
	if !spec.IsSpeciation() {
		t.Error("a Speciation-kind event must report IsSpeciation() == true")
	}
	if spec.IsCoalescence() {
		t.Error("a Speciation-kind event must never report IsCoalescence() == true")
	}

	coal := Event{Kind: Dispersal, Interaction: Coalescence}
	if coal.IsSpeciation() {
		t.Error("a Dispersal-kind event must never report IsSpeciation() == true")
	}
	if !coal.IsCoalescence() {
		t.Error("a Dispersal event with Interaction == Coalescence must report IsCoalescence() == true")
	}

	plain := Event{Kind: Dispersal, Interaction: NoInteraction}
	if plain.IsCoalescence() {
		t.Error("a Dispersal event with no interaction must not report IsCoalescence() == true")
	}
}

func TestEventTimeReturnsEventTime(t *testing.T) {
	e := Event{EventTime: 3.5}
	if got := e.Time(); got != 3.5 {
		t.Errorf("Time() = %v, want 3.5", got)
	}
}
