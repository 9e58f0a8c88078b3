package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"

	"github.com/zainal/disaster-siren/internal/domain/siren"
	"github.com/zainal/disaster-siren/internal/logger"
)

// maxUploadBytes caps announcement and custom-asset uploads.
const maxUploadBytes = 32 << 20

// errNoFile is returned when a multipart request lacks the file field.
var errNoFile = errors.New("no file uploaded")

// uploadMaxAge is how long converted uploads are kept before being swept.
const uploadMaxAge = time.Hour

// modePayload is the JSON shape of a mode.
type modePayload struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Loop        bool   `json:"loop"`
}

// statusPayload is the JSON shape of a coordinator snapshot.
type statusPayload struct {
	Phase        string        `json:"phase"`
	SelectedMode string        `json:"selected_mode"`
	ActiveMode   *modePayload  `json:"active_mode,omitempty"`
	LastError    string        `json:"last_error,omitempty"`
	Generation   uint64        `json:"generation"`
	Modes        []modePayload `json:"modes"`
}

// commandResponse acknowledges an accepted command.
type commandResponse struct {
	CorrelationID string        `json:"correlation_id"`
	Status        statusPayload `json:"status"`
}

// errorResponse carries a machine-readable error kind.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.statusPayload())
}

func (s *Server) handleModes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.modePayloads())
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, siren.Command{Kind: siren.CommandStartStop})
}

func (s *Server) handleCycle(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, siren.Command{Kind: siren.CommandCycleMode})
}

func (s *Server) handleSelectMode(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, siren.Command{
		Kind:   siren.CommandSelectMode,
		ModeID: mux.Vars(r)["id"],
	})
}

func (s *Server) handleStopAnnounce(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, siren.Command{Kind: siren.CommandStopAnnouncement})
}

// handleAnnounce accepts a live recording, converts it and enqueues a
// one-shot playback. The announcement command is never silently dropped;
// a saturated channel surfaces Busy to the caller instead.
func (s *Server) handleAnnounce(w http.ResponseWriter, r *http.Request) {
	wav, err := s.receiveAndConvert(r, "announce")
	if err != nil {
		writeError(w, r, err)

		return
	}

	s.submit(w, r, siren.Command{
		Kind:      siren.CommandPlayAnnouncement,
		AssetPath: wav,
	})
}

// handleUpload replaces the Custom mode's asset with a converted upload.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	wav, err := s.receiveAndConvert(r, "custom")
	if err != nil {
		writeError(w, r, err)

		return
	}

	if err := s.assets.ReplaceCustomAsset(wav); err != nil {
		writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, s.statusPayload())
}

// submit enqueues the command and acknowledges with a correlation id.
func (s *Server) submit(w http.ResponseWriter, r *http.Request, cmd siren.Command) {
	id, err := s.commander.Submit(r.Context(), cmd)
	if err != nil {
		writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusAccepted, commandResponse{
		CorrelationID: id,
		Status:        s.statusPayload(),
	})
}

// receiveAndConvert stores the multipart "file" field and converts it to a
// WAV named after the given prefix. The raw upload is removed afterwards;
// older converted files past their age are swept opportunistically.
func (s *Server) receiveAndConvert(r *http.Request, prefix string) (string, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", fmt.Errorf("%w: %w", errNoFile, err)
	}

	defer func() {
		_ = file.Close()
	}()

	if err := os.MkdirAll(s.uploadsDir, 0o750); err != nil {
		return "", fmt.Errorf("create uploads dir: %w", err)
	}

	s.sweepStale(r, prefix)

	stamp := time.Now().UnixNano()
	src := filepath.Join(s.uploadsDir, fmt.Sprintf("%s_%d%s", prefix, stamp, uploadExtension(header)))
	wav := filepath.Join(s.uploadsDir, fmt.Sprintf("%s_%d.wav", prefix, stamp))

	if err := saveUpload(file, src); err != nil {
		return "", err
	}

	defer func() {
		_ = os.Remove(src)
	}()

	if err := s.converter.ConvertToWAV(r.Context(), src, wav); err != nil {
		return "", err
	}

	return wav, nil
}

// sweepStale removes converted uploads past their age so announcement
// files do not accumulate on the SD card. Files a registered mode still
// points at are never swept: an installed Custom asset lives in this
// directory, and unlinking it would silence the siren mid-loop.
func (s *Server) sweepStale(r *http.Request, prefix string) {
	entries, err := os.ReadDir(s.uploadsDir)
	if err != nil {
		return
	}

	registered := make(map[string]struct{})
	for _, m := range s.assets.Modes() {
		registered[filepath.Clean(m.AssetPath)] = struct{}{}
	}

	cutoff := time.Now().Add(-uploadMaxAge)

	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil || info.IsDir() || info.ModTime().After(cutoff) {
			continue
		}

		if filepath.Ext(entry.Name()) != ".wav" || !hasPrefix(entry.Name(), prefix) {
			continue
		}

		path := filepath.Join(s.uploadsDir, entry.Name())
		if _, ok := registered[filepath.Clean(path)]; ok {
			continue
		}

		if err := os.Remove(path); err != nil {
			logger.WarnKV(r.Context(), "Sweep stale upload", "file", entry.Name(), "error", err)
		}
	}
}

func hasPrefix(name, prefix string) bool {
	return len(name) > len(prefix) && name[:len(prefix)] == prefix
}

// uploadExtension picks a sensible extension for the raw upload; browsers
// typically send webm from MediaRecorder.
func uploadExtension(header *multipart.FileHeader) string {
	if ext := filepath.Ext(header.Filename); ext != "" {
		return ext
	}

	return ".webm"
}

// saveUpload writes the multipart file to disk.
func saveUpload(file multipart.File, path string) error {
	out, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("create upload: %w", err)
	}

	if _, err := io.Copy(out, file); err != nil {
		_ = out.Close()

		return fmt.Errorf("store upload: %w", err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("close upload: %w", err)
	}

	return nil
}

// statusPayload projects the current snapshot for JSON responses.
func (s *Server) statusPayload() statusPayload {
	snapshot := s.status.Current()

	payload := statusPayload{
		Phase:        string(snapshot.Phase),
		SelectedMode: snapshot.SelectedMode,
		LastError:    siren.ErrorKind(snapshot.LastError),
		Generation:   snapshot.Generation,
		Modes:        s.modePayloads(),
	}

	if snapshot.ActiveMode != nil {
		payload.ActiveMode = &modePayload{
			ID:          snapshot.ActiveMode.ID,
			DisplayName: snapshot.ActiveMode.DisplayName,
			Loop:        snapshot.ActiveMode.Loop,
		}
	}

	return payload
}

func (s *Server) modePayloads() []modePayload {
	modes := s.assets.Modes()
	payloads := make([]modePayload, 0, len(modes))

	for _, m := range modes {
		payloads = append(payloads, modePayload{
			ID:          m.ID,
			DisplayName: m.DisplayName,
			Loop:        m.Loop,
		})
	}

	return payloads
}

// writeError maps taxonomy errors to HTTP status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError

	switch {
	case errors.Is(err, errNoFile):
		code = http.StatusBadRequest
	case errors.Is(err, siren.ErrBusy):
		code = http.StatusTooManyRequests
	case errors.Is(err, siren.ErrUnknownMode):
		code = http.StatusNotFound
	case errors.Is(err, siren.ErrAssetLocked), errors.Is(err, siren.ErrDeviceBusy):
		code = http.StatusConflict
	case errors.Is(err, siren.ErrAssetUnreadable):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, siren.ErrInvalidTransition):
		code = http.StatusConflict
	}

	logger.WarnKV(r.Context(), "Request failed",
		"method", r.Method, "path", r.URL.Path, "code", code, "error", err)

	writeJSON(w, code, errorResponse{
		Error: err.Error(),
		Kind:  siren.ErrorKind(err),
	})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	_ = json.NewEncoder(w).Encode(payload)
}
