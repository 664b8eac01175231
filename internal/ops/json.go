package ops

import (
	"encoding/json"
	"net/http"

	"github.com/lewisedginton/wallet_chatbot/pkg/logger"
)

func writeJSON(w http.ResponseWriter, log logger.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to encode response", logger.ErrorField(err))
	}
}
