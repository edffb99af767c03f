// whatsapp-mock is a development stand-in for the WhatsApp gateway. It
// accepts the same POST /messages calls the real gateway does, keeps every
// message in memory, and exposes them for inspection.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Message struct {
	To         string    `json:"to"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

type MessageStore struct {
	messages []Message
	mutex    sync.RWMutex
}

func NewMessageStore() *MessageStore {
	return &MessageStore{}
}

func (s *MessageStore) Add(msg Message) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.messages = append(s.messages, msg)
	return len(s.messages)
}

func (s *MessageStore) All() []Message {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	store := NewMessageStore()
	port := getEnv("WHATSAPP_MOCK_PORT", "8090")

	router := mux.NewRouter()

	router.HandleFunc("/messages", func(w http.ResponseWriter, r *http.Request) {
		var msg Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			logger.WithError(err).Error("Failed to decode message")
			respondWithJSON(w, http.StatusBadRequest, map[string]interface{}{
				"success": false,
				"message": "Invalid request body",
			})
			return
		}
		msg.ReceivedAt = time.Now()

		total := store.Add(msg)

		logger.WithFields(logrus.Fields{
			"to":           msg.To,
			"body":         msg.Body,
			"total_stored": total,
		}).Info("WhatsApp message received")

		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
		})
	}).Methods("POST")

	router.HandleFunc("/messages", func(w http.ResponseWriter, r *http.Request) {
		messages := store.All()
		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"success":  true,
			"messages": messages,
			"count":    len(messages),
		})
	}).Methods("GET")

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": "whatsapp-mock",
		})
	}).Methods("GET")

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.WithField("port", port).Info("Starting WhatsApp mock gateway")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down WhatsApp mock...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
