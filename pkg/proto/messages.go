// Package proto defines the message types exchanged over the internal RPC
// layer (see pkg/rpc). Field names match the public HTTP API so that the
// CLI can render either transport's output the same way.
package proto

// Method names served by the triage service.
const (
	MethodPredict  = "TriageService.Predict"
	MethodSymptoms = "TriageService.Symptoms"
	MethodDiseases = "TriageService.Diseases"
	MethodHealth   = "TriageService.Health"
)

// ---------- Predict ----------

// PredictRequest is the input to Predict.
type PredictRequest struct {
	Symptoms []string `json:"symptoms"`
}

// Condition is one candidate in a PredictResponse.
type Condition struct {
	Name            string   `json:"name"`
	Models          []string `json:"models"`
	Description     string   `json:"description"`
	Recommendations []string `json:"recommendations"`
	Tests           []string `json:"tests"`
	Urgency         string   `json:"urgency"`
}

// PredictResponse is the output of Predict.
type PredictResponse struct {
	Recognized []string    `json:"recognized"`
	Unknown    []string    `json:"unknown,omitempty"`
	Conditions []Condition `json:"possibleConditions"`
	Agreement  string      `json:"agreement"`
	CacheHit   bool        `json:"cacheHit"`
	Disclaimer string      `json:"disclaimer"`
}

// ---------- Catalog ----------

// ListResponse carries an ordered list of names.
type ListResponse struct {
	Names []string `json:"names"`
}

// HealthCheckResponse mirrors the gRPC health check status strings.
type HealthCheckResponse struct {
	Status string `json:"status"` // SERVING, NOT_SERVING
}
