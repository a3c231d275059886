package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/edupage-sync/internal/models"
	"github.com/noah-isme/edupage-sync/internal/upstream"
	"github.com/noah-isme/edupage-sync/internal/widget"
	appErrors "github.com/noah-isme/edupage-sync/pkg/errors"
	"github.com/noah-isme/edupage-sync/pkg/logger"
)

// Cycle outcomes.
const (
	CycleOutcomeOK       = "ok"
	CycleOutcomeDegraded = "degraded"
	CycleOutcomeFailed   = "failed"
	CycleOutcomePanic    = "panic"
)

// CycleState names a step of the sync state machine.
type CycleState string

const (
	StateIdle           CycleState = "idle"
	StateRefreshing     CycleState = "refreshing-base-data"
	StateTimetableToday CycleState = "fetching-today-timetable"
	StateTimetableNext  CycleState = "fetching-next-day-timetable"
	StateMenus          CycleState = "fetching-menus"
	StateNormalizing    CycleState = "normalizing"
	StateRendering      CycleState = "rendering"
	StatePersisting     CycleState = "persisting"
)

// SliceStatus reports what happened to one data slice during a cycle.
type SliceStatus string

const (
	SliceOK       SliceStatus = "ok"
	SliceDegraded SliceStatus = "degraded"
	SliceSkipped  SliceStatus = "skipped"
)

// Data slices tracked in a CycleReport.
const (
	SliceHomework       = "homework"
	SliceNotifications  = "notifications"
	SliceTimetableToday = "timetable_today"
	SliceTimetableNext  = "timetable_next"
	SliceTeachers       = "teachers"
	SliceMenuToday      = "menu_today"
	SliceMenuWeek       = "menu_week"
)

// CycleReport summarises one sync cycle.
type CycleReport struct {
	ID         string                 `json:"id"`
	Trigger    string                 `json:"trigger"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	Outcome    string                 `json:"outcome"`
	State      CycleState             `json:"state"`
	Slices     map[string]SliceStatus `json:"slices"`
	Error      string                 `json:"error,omitempty"`
	Snapshot   *models.Snapshot       `json:"-"`
}

func (r *CycleReport) mark(slice string, status SliceStatus) {
	r.Slices[slice] = status
}

// Degraded reports whether any slice failed.
func (r CycleReport) Degraded() bool {
	for _, status := range r.Slices {
		if status == SliceDegraded {
			return true
		}
	}
	return false
}

// Session holds the upstream handle and the student selection shared across
// cycles. Only one cycle uses a session at a time.
type Session struct {
	client   upstream.Client
	resolver *StudentResolver
	username string
	password string

	mu        sync.Mutex
	connected bool
}

// NewSession constructs a disconnected session.
func NewSession(client upstream.Client, username, password string, resolver *StudentResolver) *Session {
	if resolver == nil {
		resolver = NewStudentResolver("", nil)
	}
	return &Session{client: client, resolver: resolver, username: username, password: password}
}

// Client returns the upstream client.
func (s *Session) Client() upstream.Client {
	return s.client
}

// Connected reports whether the last login or refresh succeeded.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Session) setConnected(up bool) {
	s.mu.Lock()
	s.connected = up
	s.mu.Unlock()
}

// Connect logs in and resolves the active student.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.client.Login(ctx, s.username, s.password); err != nil {
		s.setConnected(false)
		return appErrors.Classify(appErrors.ErrSessionRefresh, err, "login failed")
	}
	s.setConnected(true)
	s.resolver.Resolve(ctx, s.client)
	return nil
}

// Reconnect forgets the cached student selection and logs in again.
func (s *Session) Reconnect(ctx context.Context) error {
	s.resolver.Reset()
	return s.Connect(ctx)
}

// Selection returns the student context for this session.
func (s *Session) Selection(ctx context.Context) models.StudentSelection {
	return s.resolver.Resolve(ctx, s.client)
}

// SyncServiceConfig tunes cycle behaviour.
type SyncServiceConfig struct {
	FilterHomeworkDuplicates bool
	MenuEnabled              bool
	WeeklyMenuEnabled        bool
	Location                 *time.Location
}

// SyncServiceParams groups constructor dependencies.
type SyncServiceParams struct {
	State    *StateService
	Menu     *MenuService
	Teachers *TeacherAggregator
	Metrics  *MetricsService
	Logger   *zap.Logger
	Config   SyncServiceConfig
	Now      func() time.Time
}

// SyncService drives sync cycles.
type SyncService struct {
	state    *StateService
	menu     *MenuService
	teachers *TeacherAggregator
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      SyncServiceConfig
	now      func() time.Time

	mu   sync.RWMutex
	last *CycleReport
}

// NewSyncService constructs a SyncService.
func NewSyncService(params SyncServiceParams) *SyncService {
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	if params.Config.Location == nil {
		params.Config.Location = time.Local
	}
	if params.Teachers == nil {
		params.Teachers = NewTeacherAggregator("", defaultCollation, params.Logger)
	}
	return &SyncService{
		state:    params.State,
		menu:     params.Menu,
		teachers: params.Teachers,
		metrics:  params.Metrics,
		logger:   params.Logger,
		cfg:      params.Config,
		now:      params.Now,
	}
}

// LastReport returns the most recent cycle report, if any.
func (s *SyncService) LastReport() (CycleReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return CycleReport{}, false
	}
	return *s.last, true
}

type fetched struct {
	assignments    []models.Assignment
	announcements  []models.Announcement
	timetableToday []models.LessonSlot
	timetableNext  []models.LessonSlot
	teachers       []models.Teacher
	menuToday      *string
	menuWeek       []models.MenuEntry
}

// RunCycle executes one full sync cycle. It never returns an error: failures
// are classified per stage and reflected in the report and the connection flag.
func (s *SyncService) RunCycle(ctx context.Context, session *Session, trigger string) (report CycleReport) {
	started := s.now()
	report = CycleReport{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		StartedAt: started,
		State:     StateIdle,
		Slices:    make(map[string]SliceStatus),
	}
	log := logger.ForCycle(s.logger, report.ID, trigger)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("sync cycle panicked", zap.Any("panic", rec), zap.String("state", string(report.State)), zap.Stack("stack"))
			session.setConnected(false)
			s.writeConnection(ctx, log, false)
			report.Outcome = CycleOutcomePanic
			report.Error = fmt.Sprint(rec)
		}
		report.FinishedAt = s.now()
		report.State = StateIdle
		s.metrics.ObserveCycle(report.Outcome, report.FinishedAt.Sub(report.StartedAt))
		s.mu.Lock()
		last := report
		s.last = &last
		s.mu.Unlock()
	}()

	report.State = StateRefreshing
	if err := s.refreshBase(ctx, session, log); err != nil {
		log.Error("base refresh failed, abandoning cycle", zap.Error(err))
		s.metrics.RecordStageFailure(string(StateRefreshing))
		session.setConnected(false)
		s.writeConnection(ctx, log, false)
		report.Outcome = CycleOutcomeFailed
		report.Error = err.Error()
		return report
	}

	client := session.Client()
	selection := session.Selection(ctx)
	now := started.In(s.cfg.Location)
	today := truncateToDay(now)
	next := NextSchoolDay(now)

	var data fetched
	rawHomework, homeworkErr := client.Homeworks(ctx)
	s.guard(&report, log, SliceHomework, StateRefreshing, homeworkErr)
	rawTimeline, timelineErr := client.Timeline(ctx)
	s.guard(&report, log, SliceNotifications, StateRefreshing, timelineErr)

	// Today and the next school day are fetched concurrently.
	report.State = StateTimetableToday
	todayRaw, nextRaw := s.fetchTimetables(ctx, client, today, next, &report, log)

	report.State = StateMenus
	data.menuToday, data.menuWeek = s.fetchMenus(ctx, now, &report)

	report.State = StateNormalizing
	if homeworkErr == nil {
		data.assignments = FilterAssignments(NormalizeHomeworks(rawHomework, s.cfg.Location), selection)
	}
	if timelineErr == nil {
		data.announcements = ApplyHygiene(
			FilterAnnouncements(NormalizeAnnouncements(rawTimeline, s.cfg.Location), selection),
			s.cfg.FilterHomeworkDuplicates,
		)
	}
	data.timetableToday = FilterLessons(NormalizeLessons(todayRaw, today), selection)
	data.timetableNext = FilterLessons(NormalizeLessons(nextRaw, next), selection)

	allLessons := make([]models.LessonSlot, 0, len(data.timetableToday)+len(data.timetableNext))
	allLessons = append(append(allLessons, data.timetableToday...), data.timetableNext...)
	teachers, source, teacherErr := s.teachers.Aggregate(ctx, client, allLessons, data.assignments)
	s.guard(&report, log, SliceTeachers, StateNormalizing, teacherErr)
	if teacherErr == nil {
		data.teachers = teachers
		log.Debug("teachers aggregated", zap.String("source", source), zap.Int("count", len(teachers)))
	}

	report.State = StateRendering
	snapshot := s.buildSnapshot(data, selection, now, today, next, &report)
	report.Snapshot = snapshot

	report.State = StatePersisting
	if err := s.state.WriteAll(ctx, s.stateValues(snapshot, &report, log)); err != nil {
		log.Warn("some state writes failed", zap.Error(err))
	}
	s.metrics.SetConnection(true)

	report.Outcome = CycleOutcomeOK
	if report.Degraded() {
		report.Outcome = CycleOutcomeDegraded
	}
	log.Info("sync cycle finished",
		zap.String("outcome", report.Outcome),
		zap.Int("homework", len(snapshot.Assignments)),
		zap.Int("notifications", len(snapshot.Announcements)),
		zap.Int("lessons_today", len(snapshot.TimetableToday)),
		zap.Int("lessons_next", len(snapshot.TimetableNext)),
		zap.Duration("duration", s.now().Sub(started)))
	return report
}

// refreshBase logs in when the session is down, otherwise refreshes it.
func (s *SyncService) refreshBase(ctx context.Context, session *Session, log *zap.Logger) error {
	if !session.Connected() {
		if err := session.Reconnect(ctx); err != nil {
			return err
		}
		s.writeConnection(ctx, log, true)
	} else if err := session.Client().RefreshSession(ctx); err != nil {
		return appErrors.Classify(appErrors.ErrSessionRefresh, err, "session refresh failed")
	}
	if err := session.Client().RefreshTimeline(ctx); err != nil {
		log.Warn("timeline refresh failed, reading cached timeline", zap.Error(err))
		s.metrics.RecordStageFailure("timeline_refresh")
	}
	return nil
}

func (s *SyncService) fetchTimetables(ctx context.Context, client upstream.Client, today, next time.Time, report *CycleReport, log *zap.Logger) ([]upstream.RawLesson, []upstream.RawLesson) {
	var (
		todayRaw, nextRaw []upstream.RawLesson
		todayErr, nextErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		todayRaw, todayErr = fetchTimetable(gctx, client, today)
		return nil
	})
	g.Go(func() error {
		nextRaw, nextErr = fetchTimetable(gctx, client, next)
		return nil
	})
	_ = g.Wait()

	s.guard(report, log, SliceTimetableToday, StateTimetableToday, todayErr)
	s.guard(report, log, SliceTimetableNext, StateTimetableNext, nextErr)
	if todayErr != nil {
		todayRaw = nil
	}
	if nextErr != nil {
		nextRaw = nil
	}
	return todayRaw, nextRaw
}

// fetchTimetable turns a panic inside the client into an error so it degrades
// only its own slice.
func fetchTimetable(ctx context.Context, client upstream.Client, date time.Time) (lessons []upstream.RawLesson, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("timetable %s panicked: %v", formatDay(date), rec)
		}
	}()
	return client.TimetableForDate(ctx, date)
}

func (s *SyncService) fetchMenus(ctx context.Context, now time.Time, report *CycleReport) (*string, []models.MenuEntry) {
	if s.menu == nil || !s.cfg.MenuEnabled {
		report.mark(SliceMenuToday, SliceSkipped)
		report.mark(SliceMenuWeek, SliceSkipped)
		return nil, nil
	}
	dish := s.menu.FetchDayMenu(ctx, now)
	report.mark(SliceMenuToday, SliceOK)
	if !s.cfg.WeeklyMenuEnabled {
		report.mark(SliceMenuWeek, SliceSkipped)
		return dish, nil
	}
	week := s.menu.FetchWeekMenu(ctx, CurrentWeekdays(now))
	report.mark(SliceMenuWeek, SliceOK)
	return dish, week
}

// guard classifies a degradable fetch failure for one slice.
func (s *SyncService) guard(report *CycleReport, log *zap.Logger, slice string, stage CycleState, err error) {
	if err == nil {
		report.mark(slice, SliceOK)
		return
	}
	classified := appErrors.Classify(appErrors.ErrUpstream, err, slice+" fetch failed")
	log.Warn("slice degraded, keeping previous value",
		zap.String("slice", slice), zap.String("stage", string(stage)), zap.Error(classified))
	s.metrics.RecordStageFailure(slice)
	report.mark(slice, SliceDegraded)
}

func (s *SyncService) buildSnapshot(data fetched, selection models.StudentSelection, now, today, next time.Time, report *CycleReport) *models.Snapshot {
	snapshot := &models.Snapshot{
		GeneratedAt:    now,
		Student:        selection,
		Assignments:    nonNil(data.assignments),
		Announcements:  widget.SortAnnouncements(nonNil(data.announcements)),
		TodayDate:      today,
		NextDate:       next,
		TimetableToday: nonNil(data.timetableToday),
		TimetableNext:  nonNil(data.timetableNext),
		Teachers:       nonNil(data.teachers),
		Subjects:       DistinctSubjects(data.assignments),
		MenuToday:      data.menuToday,
		WeeklyMenu:     nonNil(data.menuWeek),
	}
	if report.Slices[SliceHomework] == SliceOK {
		snapshot.Widgets.Homework = widget.RenderHomework(snapshot.Assignments, now)
	}
	if report.Slices[SliceTimetableToday] == SliceOK {
		snapshot.Widgets.TimetableToday = widget.RenderTimetable(snapshot.TimetableToday, today, now)
	}
	if report.Slices[SliceTimetableNext] == SliceOK {
		snapshot.Widgets.TimetableNext = widget.RenderTimetable(snapshot.TimetableNext, next, now)
	}
	if report.Slices[SliceNotifications] == SliceOK {
		snapshot.Widgets.Notifications = widget.RenderNotifications(snapshot.Announcements, now)
	}
	if report.Slices[SliceMenuWeek] == SliceOK {
		snapshot.Widgets.MenuWeek = widget.RenderWeeklyMenu(snapshot.WeeklyMenu, now)
	}
	return snapshot
}

// stateValues lists the values to overwrite. Slices that degraded this cycle
// are omitted so their previous values stay in place.
func (s *SyncService) stateValues(snapshot *models.Snapshot, report *CycleReport, log *zap.Logger) []StateValue {
	values := []StateValue{
		BoolValue(KeyConnection, true),
		StringValue(KeyLastSync, snapshot.GeneratedAt.Format(time.RFC3339)),
	}
	appendJSON := func(key string, value interface{}) {
		v, err := JSONValue(key, value)
		if err != nil {
			log.Error("encode state value failed", zap.String("key", key), zap.Error(err))
			return
		}
		values = append(values, v)
	}
	appendJSON(KeyActiveStudent, snapshot.Student.Student)

	if report.Slices[SliceHomework] == SliceOK {
		appendJSON(KeyHomeworkJSON, snapshot.Assignments)
		values = append(values,
			IntValue(KeyHomeworkCount, len(snapshot.Assignments)),
			StringValue(KeyHTMLHomework, snapshot.Widgets.Homework))
		appendJSON(KeySubjectsJSON, snapshot.Subjects)
	}
	if report.Slices[SliceNotifications] == SliceOK {
		appendJSON(KeyNotificationsJSON, snapshot.Announcements)
		values = append(values,
			IntValue(KeyNotificationsCount, len(snapshot.Announcements)),
			StringValue(KeyHTMLNotifications, snapshot.Widgets.Notifications))
	}
	if report.Slices[SliceTimetableToday] == SliceOK {
		appendJSON(KeyTimetableToday, snapshot.TimetableToday)
		values = append(values, StringValue(KeyHTMLTimetableToday, snapshot.Widgets.TimetableToday))
	}
	if report.Slices[SliceTimetableNext] == SliceOK {
		appendJSON(KeyTimetableNext, snapshot.TimetableNext)
		values = append(values, StringValue(KeyHTMLTimetableNext, snapshot.Widgets.TimetableNext))
	}
	if report.Slices[SliceTeachers] == SliceOK {
		appendJSON(KeyTeachersJSON, snapshot.Teachers)
		values = append(values, IntValue(KeyTeachersCount, len(snapshot.Teachers)))
	}
	if report.Slices[SliceMenuToday] == SliceOK {
		values = append(values, StringValue(KeyMenuToday, deref(snapshot.MenuToday)))
	}
	if report.Slices[SliceMenuWeek] == SliceOK {
		appendJSON(KeyMenuWeek, snapshot.WeeklyMenu)
		values = append(values, StringValue(KeyHTMLMenuWeek, snapshot.Widgets.MenuWeek))
	}
	return values
}

func (s *SyncService) writeConnection(ctx context.Context, log *zap.Logger, up bool) {
	if err := s.state.SetConnection(ctx, up); err != nil {
		log.Warn("write connection flag failed", zap.Bool("up", up), zap.Error(err))
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
