package models

// GenerateAudioRequest asks the inference service to synthesize Text in the voice of the sample
type GenerateAudioRequest struct {
	Text           string `json:"text"`
	VoiceSampleURL string `json:"audioUrl"`
	InferMode      string `json:"inferMode,omitempty"`
}

// GenerateAudioResponse carries the stored audio asset
type GenerateAudioResponse struct {
	GeneratedAudioURL string `json:"generatedAudioUrl"`
	FileKey           string `json:"fileKey"`
}
