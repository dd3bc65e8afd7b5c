package observability

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-faster/jx"
	"go.uber.org/zap"
)

// LokiConfig holds the Grafana Loki push settings. Pushing is disabled
// unless URL, User and APIKey are all set.
type LokiConfig struct {
	URL            string
	User           string
	APIKey         string
	AppName        string
	InstanceID     string
	InstanceRegion string
}

type LokiClient struct {
	url            string
	username       string
	apiKey         string
	httpClient     *http.Client
	enabled        bool
	appName        string
	instanceID     string
	instanceRegion string
	logger         *zap.Logger
	pending        sync.WaitGroup
}

var defaultClient *LokiClient

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Init installs the package-level Loki client.
func Init(cfg LokiConfig, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &LokiClient{
		appName:        firstNonEmpty(cfg.AppName, "prdigest-dev"),
		instanceID:     firstNonEmpty(cfg.InstanceID, "local"),
		instanceRegion: firstNonEmpty(cfg.InstanceRegion, "local"),
		logger:         logger.Named("loki"),
	}

	if cfg.URL == "" || cfg.User == "" || cfg.APIKey == "" {
		c.logger.Info("Loki not configured, push disabled")
		defaultClient = c
		return
	}

	c.url = cfg.URL + "/loki/api/v1/push"
	c.username = cfg.User
	c.apiKey = cfg.APIKey
	c.httpClient = &http.Client{Timeout: 5 * time.Second}
	c.enabled = true
	defaultClient = c
	c.logger.Info("Loki client initialized", zap.String("url", c.url))
}

// Shutdown waits for in-flight pushes or until ctx is done.
func Shutdown(ctx context.Context) {
	c := defaultClient
	if c == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		c.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Push sends one entry in the background.
func Push(labels map[string]string, data map[string]any) {
	c := defaultClient
	if c == nil || !c.enabled {
		return
	}

	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		c.push(labels, data)
	}()
}

func (c *LokiClient) push(labels map[string]string, data map[string]any) {
	if labels == nil {
		labels = make(map[string]string)
	}
	labels["app"] = c.appName
	labels["instance"] = c.instanceID
	labels["region"] = c.instanceRegion

	body := encodePush(labels, data, time.Now())

	httpReq, err := http.NewRequest(http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		c.logger.Warn("failed to create request", zap.Error(err))
		return
	}

	httpReq.SetBasicAuth(c.username, c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("failed to send", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("unexpected status code", zap.Int("status", resp.StatusCode))
		return
	}
}

// encodePush renders the Loki push format: one stream with one value whose
// line is data as a JSON object.
func encodePush(labels map[string]string, data map[string]any, ts time.Time) []byte {
	var line jx.Encoder
	line.ObjStart()
	for _, k := range sortedKeys(data) {
		line.FieldStart(k)
		encodeValue(&line, data[k])
	}
	line.ObjEnd()

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("streams")
	e.ArrStart()
	e.ObjStart()
	e.FieldStart("stream")
	e.ObjStart()
	for _, k := range sortedKeys(labels) {
		e.FieldStart(k)
		e.Str(labels[k])
	}
	e.ObjEnd()
	e.FieldStart("values")
	e.ArrStart()
	e.ArrStart()
	e.Str(strconv.FormatInt(ts.UnixNano(), 10))
	e.Str(line.String())
	e.ArrEnd()
	e.ArrEnd()
	e.ObjEnd()
	e.ArrEnd()
	e.ObjEnd()
	return e.Bytes()
}

func encodeValue(e *jx.Encoder, v any) {
	switch v := v.(type) {
	case nil:
		e.Null()
	case string:
		e.Str(v)
	case bool:
		e.Bool(v)
	case int:
		e.Int(v)
	case int64:
		e.Int64(v)
	case float64:
		e.Float64(v)
	case error:
		e.Str(v.Error())
	default:
		e.Str(fmt.Sprint(v))
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LogToolCall logs a tool call to Loki
func LogToolCall(requestID, userID, module, tool string, durationMs int64, status string, errMsg string) {
	level := "info"
	if status != "success" {
		level = "error"
	}
	labels := map[string]string{
		"module": module,
		"status": status,
		"level":  level,
	}

	data := map[string]any{
		"request_id":  requestID,
		"user_id":     userID,
		"module":      module,
		"tool":        tool,
		"duration_ms": durationMs,
		"status":      status,
	}

	if errMsg != "" {
		data["error"] = errMsg
	}

	Push(labels, data)
}

// LogAgentRun logs one completed or failed persona run.
func LogAgentRun(requestID, userID, persona string, steps int, durationMs int64, status string, errMsg string) {
	level := "info"
	if status != "success" {
		level = "error"
	}
	data := map[string]any{
		"request_id":  requestID,
		"user_id":     userID,
		"persona":     persona,
		"steps":       steps,
		"duration_ms": durationMs,
		"status":      status,
	}
	if errMsg != "" {
		data["error"] = errMsg
	}
	Push(map[string]string{"type": "agent", "persona": persona, "level": level}, data)
}

// LogRequest logs an incoming request to Loki
func LogRequest(method, path string, statusCode int, durationMs int64) {
	labels := map[string]string{
		"type":   "request",
		"method": method,
		"path":   path,
		"level":  "info",
	}

	data := map[string]any{
		"method":      method,
		"path":        path,
		"status_code": statusCode,
		"duration_ms": durationMs,
	}

	Push(labels, data)
}

// LogError logs an error to Loki
func LogError(context string, err error) {
	labels := map[string]string{
		"type":  "error",
		"level": "error",
	}

	data := map[string]any{
		"context": context,
		"error":   err,
	}

	Push(labels, data)
}

// LogSecurityEvent logs a security-related event to Loki
func LogSecurityEvent(requestID, userID, event string, details map[string]any) {
	labels := map[string]string{
		"type":  "security",
		"level": "warn",
	}

	data := map[string]any{
		"request_id": requestID,
		"user_id":    userID,
		"event":      event,
	}
	for k, v := range details {
		data[k] = v
	}

	Push(labels, data)
}
