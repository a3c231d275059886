package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/noah-isme/edupage-sync/internal/models"
	"github.com/noah-isme/edupage-sync/internal/upstream"
	"github.com/noah-isme/edupage-sync/pkg/config"
)

type stubTeacherRoster struct {
	teachers []upstream.RawTeacher
	err      error
	calls    int
}

func (s *stubTeacherRoster) Teachers(context.Context) ([]upstream.RawTeacher, error) {
	s.calls++
	return s.teachers, s.err
}

func teacherNames(teachers []models.Teacher) []string {
	names := make([]string, 0, len(teachers))
	for _, teacher := range teachers {
		names = append(names, teacher.DisplayName)
	}
	return names
}

func sampleLessons() []models.LessonSlot {
	return []models.LessonSlot{
		{Subject: "Physics", TeacherNames: []string{"Zora Adams"}, TeacherIDs: []string{"t2"}},
		{Subject: "Math", TeacherNames: []string{"Ábel Novak", "Zora Adams"}, TeacherIDs: []string{"t1", "t2"}},
		{Subject: "Chemistry", TeacherNames: []string{"Zora Adams"}, TeacherIDs: []string{"t2"}},
		{Subject: "Math", TeacherNames: []string{"Ábel Novak"}, TeacherIDs: []string{"t1"}},
	}
}

func TestTeachersFromRosterDropsUnnamedAndSorts(t *testing.T) {
	raw := decode[[]upstream.RawTeacher](t, `[
		{"id": "t3", "firstName": "Zed", "lastName": "Ray", "short": "ZR"},
		{"id": "t4"},
		{"id": "t1", "name": "Ábel Novak"},
		{"id": "t2", "firstname": "Bela", "lastname": "Toth"}
	]`)
	teachers := TeachersFromRoster(raw, language.Slovak)

	assert.Equal(t, []string{"Ábel Novak", "Bela Toth", "Zed Ray"}, teacherNames(teachers))
	require.NotNil(t, teachers[2].ShortCode)
	assert.Equal(t, "ZR", *teachers[2].ShortCode)
	assert.Equal(t, "t1", *teachers[0].ID)
	assert.NotNil(t, teachers[0].Subjects)
}

func TestTeachersFromRecordsDedupesAndCollectsSubjects(t *testing.T) {
	assignments := []models.Assignment{
		{TeacherName: strPtr("Zora Adams"), Subject: strPtr("Astronomy")},
		{TeacherName: strPtr("Carl Young"), Subject: strPtr("Music")},
		{TeacherName: strPtr(UnknownName)},
	}
	teachers := TeachersFromRecords(sampleLessons(), assignments, language.Slovak)

	require.Len(t, teachers, 3)
	assert.Equal(t, []string{"Ábel Novak", "Carl Young", "Zora Adams"}, teacherNames(teachers))
	assert.Equal(t, []string{"Math"}, teachers[0].Subjects)
	assert.Equal(t, "t1", *teachers[0].ID)
	assert.Nil(t, teachers[1].ID)
	assert.Equal(t, []string{"Astronomy", "Chemistry", "Math", "Physics"}, teachers[2].Subjects)
}

func TestTeachersFromRecordsMergesNameOnlySighting(t *testing.T) {
	lessons := []models.LessonSlot{
		{Subject: "Biology", TeacherNames: []string{"Zora Adams"}},
		{Subject: "Physics", TeacherNames: []string{"Zora Adams"}, TeacherIDs: []string{"t2"}},
		{Subject: "Art", TeacherNames: []string{"zora adams"}},
	}
	teachers := TeachersFromRecords(lessons, nil, language.Slovak)

	require.Len(t, teachers, 1)
	require.NotNil(t, teachers[0].ID)
	assert.Equal(t, "t2", *teachers[0].ID)
	assert.Equal(t, []string{"Art", "Biology", "Physics"}, teachers[0].Subjects)
}

func TestTeacherAggregatorAutoPrefersRoster(t *testing.T) {
	source := &stubTeacherRoster{teachers: decode[[]upstream.RawTeacher](t, `[{"id": "r1", "name": "Roster Only"}]`)}
	aggregator := NewTeacherAggregator(config.TeacherSourceAuto, language.Und, nil)

	teachers, used, err := aggregator.Aggregate(context.Background(), source, sampleLessons(), nil)
	require.NoError(t, err)
	assert.Equal(t, config.TeacherSourceRoster, used)
	assert.Equal(t, []string{"Roster Only"}, teacherNames(teachers))
}

func TestTeacherAggregatorAutoScansWhenRosterEmptyOrFailing(t *testing.T) {
	aggregator := NewTeacherAggregator("", language.Und, nil)

	teachers, used, err := aggregator.Aggregate(context.Background(), &stubTeacherRoster{}, sampleLessons(), nil)
	require.NoError(t, err)
	assert.Equal(t, config.TeacherSourceScan, used)
	assert.Len(t, teachers, 2)

	teachers, used, err = aggregator.Aggregate(context.Background(), &stubTeacherRoster{err: errors.New("404")}, sampleLessons(), nil)
	require.NoError(t, err)
	assert.Equal(t, config.TeacherSourceScan, used)
	assert.Len(t, teachers, 2)
}

func TestTeacherAggregatorExplicitStrategies(t *testing.T) {
	failing := &stubTeacherRoster{err: errors.New("down")}
	_, _, err := NewTeacherAggregator(config.TeacherSourceRoster, language.Und, nil).
		Aggregate(context.Background(), failing, sampleLessons(), nil)
	assert.Error(t, err)

	source := &stubTeacherRoster{teachers: decode[[]upstream.RawTeacher](t, `[{"id": "r1", "name": "Roster Only"}]`)}
	teachers, used, err := NewTeacherAggregator(config.TeacherSourceScan, language.Und, nil).
		Aggregate(context.Background(), source, sampleLessons(), nil)
	require.NoError(t, err)
	assert.Equal(t, config.TeacherSourceScan, used)
	assert.Equal(t, 0, source.calls)
	assert.Equal(t, []string{"Ábel Novak", "Zora Adams"}, teacherNames(teachers))
}
