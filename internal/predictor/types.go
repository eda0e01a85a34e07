package predictor

// PredictRequest последний выпавший символ последовательности.
type PredictRequest struct {
	LastChar string `json:"last_char"`
}

// PredictResponse подсказка сервиса и цвет, которым её показать.
type PredictResponse struct {
	Message string `json:"message"`
	Color   string `json:"color"`
}

// TrainRequest обучающая последовательность из символов A и B.
type TrainRequest struct {
	Sequence string `json:"sequence"`
}

// TrainResponse ответ на обучение.
type TrainResponse struct {
	Message string `json:"message"`
}

// ExtractResponse последовательность, извлечённая из PDF.
type ExtractResponse struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
}
