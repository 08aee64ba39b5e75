package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
)

// Standalone upstream commerce stub for local development. It verifies the
// gateway's outbound signature headers and echoes the request back.
func main() {
	secret := os.Getenv("UPSTREAM_APP_SECRET")

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		if secret != "" {
			payload := "{}"
			if len(body) > 0 {
				payload = string(body)
			}
			message := r.Header.Get("X-App-ID") + r.Header.Get("X-Timestamp") + r.Header.Get("X-Nonce") + payload
			mac := hmac.New(sha256.New, []byte(secret))
			mac.Write([]byte(message))
			expected := hex.EncodeToString(mac.Sum(nil))

			if !hmac.Equal([]byte(expected), []byte(r.Header.Get("X-Signature"))) {
				log.Printf("bad signature on %s %s", r.Method, r.URL.Path)
				w.WriteHeader(http.StatusForbidden)
				json.NewEncoder(w).Encode(map[string]string{"error": "invalid signature"})
				return
			}
		}

		response := map[string]interface{}{
			"message": "Hello from upstream stub!",
			"path":    r.URL.Path,
			"method":  r.Method,
			"nonce":   r.Header.Get("X-Nonce"),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)

		log.Printf("Received request: %s %s", r.Method, r.URL.Path)
	})

	log.Println("Upstream stub starting on port 9000")
	http.ListenAndServe(":9000", nil)
}
