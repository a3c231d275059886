package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/edupage-sync/pkg/errors"
)

// Keys written by every sync cycle.
const (
	KeyConnection         = "info.connection"
	KeyLastSync           = "info.last_sync"
	KeyActiveStudent      = "info.active_student"
	KeyHomeworkJSON       = "data.homework_json"
	KeyHomeworkCount      = "data.homework_count"
	KeyNotificationsJSON  = "data.notifications_json"
	KeyNotificationsCount = "data.notifications_count"
	KeyTimetableToday     = "data.timetable_today_json"
	KeyTimetableNext      = "data.timetable_next_json"
	KeyTeachersJSON       = "data.teachers_json"
	KeyTeachersCount      = "data.teachers_count"
	KeySubjectsJSON       = "data.subjects_json"
	KeyMenuToday          = "data.menu_today"
	KeyMenuWeek           = "data.menu_week_json"
	KeyHTMLHomework       = "html.homework"
	KeyHTMLTimetableToday = "html.timetable_today"
	KeyHTMLTimetableNext  = "html.timetable_next"
	KeyHTMLNotifications  = "html.notifications"
	KeyHTMLMenuWeek       = "html.menu_week"
)

// StateKeys lists every key readable over the state API.
var StateKeys = []string{
	KeyConnection, KeyLastSync, KeyActiveStudent,
	KeyHomeworkJSON, KeyHomeworkCount,
	KeyNotificationsJSON, KeyNotificationsCount,
	KeyTimetableToday, KeyTimetableNext,
	KeyTeachersJSON, KeyTeachersCount, KeySubjectsJSON,
	KeyMenuToday, KeyMenuWeek,
	KeyHTMLHomework, KeyHTMLTimetableToday, KeyHTMLTimetableNext, KeyHTMLNotifications, KeyHTMLMenuWeek,
}

// WidgetKeys maps widget names served over HTTP to their state keys.
var WidgetKeys = map[string]string{
	"homework":        KeyHTMLHomework,
	"timetable_today": KeyHTMLTimetableToday,
	"timetable_next":  KeyHTMLTimetableNext,
	"notifications":   KeyHTMLNotifications,
	"menu_week":       KeyHTMLMenuWeek,
}

// StateStore abstracts persistence for snapshot values. Implementations
// return appErrors.ErrStateMiss for unknown keys.
type StateStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// StateValue is one named value of a snapshot.
type StateValue struct {
	Key   string
	Value []byte
}

// StringValue builds a raw string value.
func StringValue(key, value string) StateValue {
	return StateValue{Key: key, Value: []byte(value)}
}

// IntValue builds a decimal count value.
func IntValue(key string, value int) StateValue {
	return StateValue{Key: key, Value: []byte(strconv.Itoa(value))}
}

// BoolValue builds a true/false value.
func BoolValue(key string, value bool) StateValue {
	return StateValue{Key: key, Value: []byte(strconv.FormatBool(value))}
}

// JSONValue encodes value as JSON.
func JSONValue(key string, value interface{}) (StateValue, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return StateValue{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "encode "+key)
	}
	return StateValue{Key: key, Value: payload}, nil
}

// StateService writes snapshot values with the configured key prefix and
// records write metrics.
type StateService struct {
	store   StateStore
	metrics *MetricsService
	prefix  string
	logger  *zap.Logger
}

// NewStateService constructs a state service.
func NewStateService(store StateStore, metrics *MetricsService, prefix string, logger *zap.Logger) *StateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateService{store: store, metrics: metrics, prefix: prefix, logger: logger}
}

// Key returns the fully qualified store key.
func (s *StateService) Key(key string) string {
	return s.prefix + key
}

// Get reads a value by its unprefixed key.
func (s *StateService) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.store.Get(ctx, s.Key(key))
	if err != nil {
		if errors.Is(err, appErrors.ErrStateMiss) {
			return nil, err
		}
		s.logger.Warn("state get failed", zap.String("key", key), zap.Error(err))
		return nil, err
	}
	return value, nil
}

// Set overwrites a single value.
func (s *StateService) Set(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := s.store.Set(ctx, s.Key(key), value)
	s.metrics.ObserveStateWrite(err, time.Since(start))
	if err != nil {
		s.logger.Warn("state set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// WriteAll overwrites every value, continuing past failures. The returned
// error joins every failed write.
func (s *StateService) WriteAll(ctx context.Context, values []StateValue) error {
	var errs []error
	for _, v := range values {
		if err := s.Set(ctx, v.Key, v.Value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SetConnection writes the connection health flag.
func (s *StateService) SetConnection(ctx context.Context, up bool) error {
	s.metrics.SetConnection(up)
	v := BoolValue(KeyConnection, up)
	return s.Set(ctx, v.Key, v.Value)
}

// Connected reads the connection flag; a missing value counts as down.
func (s *StateService) Connected(ctx context.Context) bool {
	value, err := s.Get(ctx, KeyConnection)
	if err != nil {
		return false
	}
	up, err := strconv.ParseBool(string(value))
	return err == nil && up
}
