package domain

// TurnState is a stage of the chat turn pipeline.
type TurnState string

// Turn pipeline states, in order. TurnFailed is reachable from any state.
const (
	TurnReceived       TurnState = "received"
	TurnRetrieving     TurnState = "retrieving"
	TurnComposing      TurnState = "composing"
	TurnGenerating     TurnState = "generating"
	TurnPostprocessing TurnState = "postprocessing"
	TurnPersisted      TurnState = "persisted"
	TurnFailed         TurnState = "failed"
)

// String returns the string representation.
func (s TurnState) String() string {
	return string(s)
}

// TurnOptions are per-turn overrides. Zero values fall back to
// the session model, then configured defaults, then built-in defaults.
// Temperature is a pointer because 0 is a valid temperature; nil means unset.
type TurnOptions struct {
	Model       string
	Temperature *float64
	MaxTokens   int
	TopP        float64
	MaxResults  int
}

// Built-in generation defaults.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1024
	DefaultTopP        = 0.9
	DefaultMaxResults  = 3
)

// Merge fills zero fields of o from fallback.
func (o TurnOptions) Merge(fallback TurnOptions) TurnOptions {
	if o.Model == "" {
		o.Model = fallback.Model
	}
	if o.Temperature == nil {
		o.Temperature = fallback.Temperature
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = fallback.MaxTokens
	}
	if o.TopP <= 0 {
		o.TopP = fallback.TopP
	}
	if o.MaxResults <= 0 {
		o.MaxResults = fallback.MaxResults
	}
	return o
}

// Float64 returns a pointer to v, for setting TurnOptions.Temperature.
func Float64(v float64) *float64 {
	return &v
}

// TemperatureOr returns the temperature, or fallback when it is unset.
func (o TurnOptions) TemperatureOr(fallback float64) float64 {
	if o.Temperature == nil {
		return fallback
	}
	return *o.Temperature
}

// TurnResult is returned to the caller after a successful turn.
type TurnResult struct {
	// Message is the persisted assistant message.
	Message Message `json:"response"`

	// RelevantDocs summarises the chunks used as context. Empty, never nil.
	RelevantDocs []RelevantDoc `json:"relevantDocs"`

	// Query is the text used for retrieval, empty for non-RAG turns.
	Query string `json:"query,omitempty"`

	// Retrieval reports how the vector index call ended.
	Retrieval Outcome `json:"-"`
}
