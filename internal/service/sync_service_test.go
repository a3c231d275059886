package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/noah-isme/edupage-sync/internal/upstream"
	"github.com/noah-isme/edupage-sync/pkg/config"
)

type fakeClient struct {
	mu sync.Mutex

	loginErr     error
	refreshErr   error
	timelineErr  error
	homeworkErr  error
	timetableErr map[string]error
	panicOn      string

	students   string
	homeworks  string
	timeline   string
	teachers   string
	timetables map[string]string

	logins    int
	refreshes int
}

func (f *fakeClient) Login(context.Context, string, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	return f.loginErr
}

func (f *fakeClient) RefreshSession(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return f.refreshErr
}

func (f *fakeClient) RefreshTimeline(context.Context) error { return nil }

func (f *fakeClient) TimetableForDate(_ context.Context, date time.Time) ([]upstream.RawLesson, error) {
	key := date.Format("2006-01-02")
	if f.panicOn == "timetable:"+key {
		panic("broken timetable")
	}
	if err := f.timetableErr[key]; err != nil {
		return nil, err
	}
	return decodeList[upstream.RawLesson](f.timetables[key])
}

func (f *fakeClient) Students(context.Context) ([]upstream.RawStudent, error) {
	return decodeList[upstream.RawStudent](f.students)
}

func (f *fakeClient) Homeworks(context.Context) ([]upstream.RawHomework, error) {
	if f.panicOn == "homeworks" {
		panic("nil map")
	}
	if f.homeworkErr != nil {
		return nil, f.homeworkErr
	}
	return decodeList[upstream.RawHomework](f.homeworks)
}

func (f *fakeClient) Timeline(context.Context) ([]upstream.RawTimelineItem, error) {
	if f.timelineErr != nil {
		return nil, f.timelineErr
	}
	return decodeList[upstream.RawTimelineItem](f.timeline)
}

func (f *fakeClient) Teachers(context.Context) ([]upstream.RawTeacher, error) {
	return decodeList[upstream.RawTeacher](f.teachers)
}

func (f *fakeClient) User(context.Context) (*upstream.RawRef, error) {
	return &upstream.RawRef{}, nil
}

func decodeList[T any](raw string) ([]T, error) {
	if raw == "" {
		return nil, nil
	}
	var out []T
	err := json.Unmarshal([]byte(raw), &out)
	return out, err
}

// 2024-01-05 is a Friday, so the next school day is Monday 2024-01-08.
var cycleNow = time.Date(2024, 1, 5, 10, 30, 0, 0, time.UTC)

func newSyncFixture(t *testing.T, client *fakeClient, mutate func(*SyncServiceConfig)) (*SyncService, *Session, *memoryStore) {
	t.Helper()
	store := newMemoryStore()
	state := NewStateService(store, NewMetricsService(), "", nil)
	cfg := SyncServiceConfig{FilterHomeworkDuplicates: true, Location: time.UTC}
	if mutate != nil {
		mutate(&cfg)
	}
	svc := NewSyncService(SyncServiceParams{
		State:    state,
		Teachers: NewTeacherAggregator(config.TeacherSourceAuto, language.Und, nil),
		Metrics:  NewMetricsService(),
		Config:   cfg,
		Now:      func() time.Time { return cycleNow },
	})
	session := NewSession(client, "user", "pass", NewStudentResolver("ben", nil))
	return svc, session, store
}

func fullClient() *fakeClient {
	return &fakeClient{
		students: `[{"id":1,"name":"Anna Müller"},{"id":2,"name":"Ben Müller"}]`,
		homeworks: `[
			{"id":"h1","title":"Essay","dueDate":"2024-01-01","subject":{"name":"History"},"studentIds":[2]},
			{"id":"h2","title":"Anna only","dueDate":"2024-01-09","studentIds":[1]},
			{"id":"h3","title":"Everyone","dueDate":"2024-01-10","subject":{"name":"Art"}}
		]`,
		timeline: `[
			{"id":1,"type":"homework","text":"x"},
			{"id":2,"type":"msg","text":""},
			{"id":3,"type":"msg","text":"hi <b>"}
		]`,
		timetables: map[string]string{
			"2024-01-05": `[{"period":1,"subject":{"name":"Math"},"teachers":[{"id":"t1","name":"Eva Kral"}]}]`,
			"2024-01-08": `[{"period":2,"subject":{"name":"Art"},"teachers":[{"id":"t2","name":"Ian Moss"}]}]`,
		},
	}
}

func TestRunCycleWritesEverySlice(t *testing.T) {
	client := fullClient()
	svc, session, store := newSyncFixture(t, client, nil)

	report := svc.RunCycle(context.Background(), session, "manual")

	assert.Equal(t, CycleOutcomeOK, report.Outcome)
	assert.Equal(t, StateIdle, report.State)
	assert.Equal(t, 1, client.logins)
	assert.Equal(t, "true", store.get(KeyConnection))
	assert.Equal(t, cycleNow.Format(time.RFC3339), store.get(KeyLastSync))
	assert.Contains(t, store.get(KeyActiveStudent), `"id":"2"`)

	assert.Equal(t, "2", store.get(KeyHomeworkCount))
	assert.Contains(t, store.get(KeyHomeworkJSON), `"Essay"`)
	assert.NotContains(t, store.get(KeyHomeworkJSON), "Anna only")
	assert.Equal(t, `["Art","History"]`, store.get(KeySubjectsJSON))

	assert.Equal(t, "1", store.get(KeyNotificationsCount))
	assert.Contains(t, store.get(KeyHTMLNotifications), "hi &lt;b&gt;")

	assert.Contains(t, store.get(KeyTimetableToday), `"Math"`)
	assert.Contains(t, store.get(KeyTimetableNext), `"Art"`)
	assert.Contains(t, store.get(KeyHTMLTimetableNext), "Monday 08.01.2024")
	assert.Equal(t, "2", store.get(KeyTeachersCount))

	homeworkHTML := store.get(KeyHTMLHomework)
	assert.Contains(t, homeworkHTML, "hw-overdue")
	assert.Contains(t, homeworkHTML, "rendered at 10:30")

	assert.False(t, store.has(KeyMenuToday))
	assert.Equal(t, SliceSkipped, report.Slices[SliceMenuWeek])
}

func TestRunCycleWritesEmptyCollections(t *testing.T) {
	client := &fakeClient{}
	svc, session, store := newSyncFixture(t, client, nil)

	report := svc.RunCycle(context.Background(), session, "schedule")
	require.Equal(t, CycleOutcomeOK, report.Outcome)

	for _, key := range []string{KeyHomeworkJSON, KeyNotificationsJSON, KeyTimetableToday, KeyTimetableNext, KeyTeachersJSON, KeySubjectsJSON} {
		assert.Equal(t, "[]", store.get(key), key)
	}
	assert.Equal(t, "0", store.get(KeyHomeworkCount))
	assert.Equal(t, "null", store.get(KeyActiveStudent))
	assert.Contains(t, store.get(KeyHTMLHomework), "Nothing pending")
	assert.Contains(t, store.get(KeyHTMLTimetableToday), "No lessons")
}

func TestRunCycleLoginFailureAbortsAndMarksDown(t *testing.T) {
	client := fullClient()
	client.loginErr = errors.New("bad credentials")
	svc, session, store := newSyncFixture(t, client, nil)

	report := svc.RunCycle(context.Background(), session, "schedule")

	assert.Equal(t, CycleOutcomeFailed, report.Outcome)
	assert.Contains(t, report.Error, "login failed")
	assert.Equal(t, "false", store.get(KeyConnection))
	assert.False(t, store.has(KeyHomeworkJSON))
	assert.False(t, session.Connected())
}

func TestRunCycleRefreshFailureReconnectsNextCycle(t *testing.T) {
	client := fullClient()
	svc, session, store := newSyncFixture(t, client, nil)
	require.NoError(t, session.Connect(context.Background()))

	client.refreshErr = errors.New("session expired")
	report := svc.RunCycle(context.Background(), session, "schedule")
	assert.Equal(t, CycleOutcomeFailed, report.Outcome)
	assert.Equal(t, "false", store.get(KeyConnection))

	client.refreshErr = nil
	report = svc.RunCycle(context.Background(), session, "schedule")
	assert.Equal(t, CycleOutcomeOK, report.Outcome)
	assert.Equal(t, 2, client.logins)
	assert.Equal(t, "true", store.get(KeyConnection))
}

func TestRunCycleDegradedTimetableKeepsPreviousValue(t *testing.T) {
	client := fullClient()
	svc, session, store := newSyncFixture(t, client, nil)
	svc.RunCycle(context.Background(), session, "schedule")
	previous := store.get(KeyTimetableNext)
	require.Contains(t, previous, "Art")

	client.timetables["2024-01-08"] = `[]`
	client.timetableErr = map[string]error{"2024-01-08": errors.New("timeout")}
	client.homeworks = `[]`
	report := svc.RunCycle(context.Background(), session, "schedule")

	assert.Equal(t, CycleOutcomeDegraded, report.Outcome)
	assert.Equal(t, SliceDegraded, report.Slices[SliceTimetableNext])
	assert.Equal(t, SliceOK, report.Slices[SliceTimetableToday])
	assert.Equal(t, previous, store.get(KeyTimetableNext))
	assert.Equal(t, "0", store.get(KeyHomeworkCount))
	assert.Equal(t, "true", store.get(KeyConnection))
}

func TestRunCycleTimetablePanicDegradesOnlyItsSlice(t *testing.T) {
	client := fullClient()
	client.panicOn = "timetable:2024-01-05"
	svc, session, _ := newSyncFixture(t, client, nil)

	report := svc.RunCycle(context.Background(), session, "schedule")
	assert.Equal(t, CycleOutcomeDegraded, report.Outcome)
	assert.Equal(t, SliceDegraded, report.Slices[SliceTimetableToday])
	assert.Equal(t, SliceOK, report.Slices[SliceTimetableNext])
}

func TestRunCycleRecoversFromPanic(t *testing.T) {
	client := fullClient()
	client.panicOn = "homeworks"
	svc, session, store := newSyncFixture(t, client, nil)

	var report CycleReport
	require.NotPanics(t, func() {
		report = svc.RunCycle(context.Background(), session, "schedule")
	})
	assert.Equal(t, CycleOutcomePanic, report.Outcome)
	assert.Equal(t, "false", store.get(KeyConnection))
	assert.False(t, session.Connected())

	last, ok := svc.LastReport()
	require.True(t, ok)
	assert.Equal(t, report.ID, last.ID)
}

func TestRunCycleHygieneCanBeDisabled(t *testing.T) {
	client := fullClient()
	svc, session, store := newSyncFixture(t, client, func(cfg *SyncServiceConfig) {
		cfg.FilterHomeworkDuplicates = false
	})
	svc.RunCycle(context.Background(), session, "schedule")
	assert.Equal(t, "3", store.get(KeyNotificationsCount))
}

func TestRunCycleWithMenus(t *testing.T) {
	client := fullClient()
	transport := &fakeTransport{responses: map[string]string{"https://gym.test/v1": `{"dishes":[{"name":"Soup"}]}`}}
	svc, session, store := newSyncFixture(t, client, func(cfg *SyncServiceConfig) {
		cfg.MenuEnabled = true
		cfg.WeeklyMenuEnabled = true
	})
	svc.menu = newTestMenuService(transport, nil)

	report := svc.RunCycle(context.Background(), session, "schedule")
	assert.Equal(t, SliceOK, report.Slices[SliceMenuWeek])
	assert.Equal(t, "Soup", store.get(KeyMenuToday))
	assert.Equal(t, 5, strings.Count(store.get(KeyMenuWeek), `"mainDish":"Soup"`))
	assert.Contains(t, store.get(KeyHTMLMenuWeek), "Fri 05.01.")
}

func TestRunCycleDueTodayIsUpcomingInConfiguredZone(t *testing.T) {
	newYork, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	host := time.Local
	time.Local = time.UTC
	t.Cleanup(func() { time.Local = host })

	client := &fakeClient{homeworks: `[{"id":"h1","title":"Due today","dueDate":"2024-01-05"}]`}
	svc, session, store := newSyncFixture(t, client, func(cfg *SyncServiceConfig) {
		cfg.Location = newYork
	})

	report := svc.RunCycle(context.Background(), session, "schedule")
	require.Equal(t, CycleOutcomeOK, report.Outcome)

	homeworkHTML := store.get(KeyHTMLHomework)
	assert.Contains(t, homeworkHTML, "hw-upcoming")
	assert.NotContains(t, homeworkHTML, "hw-overdue")
	assert.Contains(t, homeworkHTML, "05.01.2024")
	assert.Contains(t, store.get(KeyHomeworkJSON), `"2024-01-05T00:00:00-05:00"`)
}
