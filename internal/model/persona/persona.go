package persona

// Persona is a canonical voice profile offered for selection. Raw remote
// records are normalized at the directory boundary; by the time a Persona
// reaches this type its VoiceID is guaranteed non-empty.
type Persona struct {
	ID              int    `json:"id"`
	DisplayName     string `json:"displayName"`
	AvatarURL       string `json:"avatarUrl"`
	VoiceID         string `json:"voiceId"`
	SampleUtterance string `json:"sampleUtterance,omitempty"`
	PopularityRank  int    `json:"popularityRank,omitempty"` // 1-based; 0 means unranked
}

// Valid reports whether the persona may be offered for selection. Sending on
// behalf of a persona without a voice identifier is impossible.
func (p Persona) Valid() bool {
	return p.VoiceID != ""
}
