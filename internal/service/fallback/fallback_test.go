package fallback

import "testing"

func TestApplyReplacesPeriods(t *testing.T) {
	got := Apply("Hello there.")
	if got != "Hello there~" {
		t.Fatalf("unexpected rendering: %q", got)
	}
}

func TestApplyPassesThroughOtherPunctuation(t *testing.T) {
	got := Apply("Really?! Yes. No!")
	if got != "Really?! Yes~ No!" {
		t.Fatalf("unexpected rendering: %q", got)
	}
}

func TestApplyEmptyInput(t *testing.T) {
	if got := Apply(""); got != "" {
		t.Fatalf("expected empty output for empty input, got %q", got)
	}
}

func TestApplyNeverEmptyForNonEmptyInput(t *testing.T) {
	inputs := []string{".", "...", "a", "  ", "안녕.", "!?"}
	for _, in := range inputs {
		if got := Apply(in); got == "" {
			t.Fatalf("empty output for input %q", in)
		}
	}
}

func TestApplyDeterministic(t *testing.T) {
	if Apply("one. two.") != Apply("one. two.") {
		t.Fatal("expected identical output for identical input")
	}
}
