package birthday

import (
	"strings"
	"testing"
	"time"

	"izumi/internal/command"
	"izumi/internal/command/commandtest"
	"izumi/internal/config"
	mem "izumi/internal/memory"
	"izumi/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 2, 10, 15, 0, 0, time.UTC)

func services(t *testing.T) *command.Services {
	st, err := storage.New(t.TempDir())
	require.NoError(t, err)
	return &command.Services{
		Storage: st,
		Memory:  mem.NewInMemory("", mem.WithClock(func() time.Time { return now })),
	}
}

func run(t *testing.T, svc *command.Services, line string) *commandtest.Recorder {
	t.Helper()
	req, rec := commandtest.Prefix(&BirthdayCommand{}, svc, line)
	require.NoError(t, (&BirthdayCommand{}).Run(req))
	return rec
}

func TestSetStoresInBothPlaces(t *testing.T) {
	svc := services(t)
	rec := run(t, svc, "setbirthday 2000-06-10")
	assert.Contains(t, rec.All(), "June 10, 2000")

	b, ok, err := svc.Storage.GetBirthday("g1", "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, mem.Birthday{Month: 6, Day: 10, Year: 2000}, b)

	p, ok := svc.Memory.User("u1")
	require.True(t, ok)
	require.NotNil(t, p.BasicInfo.Birthday)
	assert.Equal(t, 6, p.BasicInfo.Birthday.Month)
	assert.Equal(t, 25, p.BasicInfo.Age)

	rec = run(t, svc, "birthday show")
	assert.Contains(t, rec.All(), "June 10, 2000")
}

func TestSetRejectsGarbage(t *testing.T) {
	rec := run(t, services(t), "setbirthday tomorrow")
	assert.Contains(t, rec.All(), "couldn't read")
	assert.NotEmpty(t, rec.Privs)
}

func TestCountdown(t *testing.T) {
	svc := services(t)
	run(t, svc, "setbirthday 06-10")
	rec := run(t, svc, "birthdaycountdown")
	assert.Contains(t, rec.All(), "7 days 14h")

	run(t, svc, "setbirthday 06-02")
	rec = run(t, svc, "birthdaycountdown")
	assert.Contains(t, rec.All(), "birthday today")

	rec = run(t, svc, "birthdaycountdown <@99>")
	assert.Contains(t, rec.All(), "hasn't set a birthday")
}

func TestNextRollsOver(t *testing.T) {
	assert.Equal(t, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), Next(mem.Birthday{Month: 1, Day: 5}, now))
	assert.Equal(t, time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC), Next(mem.Birthday{Month: 6, Day: 3}, now))
	// common year: Feb 29 is celebrated on Mar 1
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Next(mem.Birthday{Month: 2, Day: 29}, now))
}

func TestCountdownFormat(t *testing.T) {
	assert.Equal(t, "5h", Countdown(4*time.Hour+10*time.Minute))
	assert.Equal(t, "2 days", Countdown(48*time.Hour))
	assert.Equal(t, "1 days 1h", Countdown(24*time.Hour+time.Minute))
}

func TestListIsUpcomingOrder(t *testing.T) {
	svc := services(t)
	require.NoError(t, svc.Storage.SetBirthday("g1", "42", mem.Birthday{Month: 1, Day: 5}))
	require.NoError(t, svc.Storage.SetBirthday("g1", "43", mem.Birthday{Month: 7, Day: 1}))
	require.NoError(t, svc.Storage.SetBirthday("g1", "u1", mem.Birthday{Month: 6, Day: 2}))

	rec := run(t, svc, "birthdays")
	require.Len(t, rec.Embeds, 1)
	lines := strings.Split(rec.Embeds[0].Description, "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "<@u1>")
	assert.Contains(t, lines[0], "today")
	assert.Contains(t, lines[1], "<@43>")
	assert.Contains(t, lines[2], "<@42>")
}

func TestUpcomingTruncates(t *testing.T) {
	all := map[string]mem.Birthday{
		"1": {Month: 7, Day: 1},
		"2": {Month: 7, Day: 2},
		"3": {Month: 7, Day: 3},
	}
	out := Upcoming(all, now, 2)
	assert.Contains(t, out, "…and 1 more")
	assert.NotContains(t, out, "<@3>")
}

func TestChannelNeedsManageGuild(t *testing.T) {
	svc := services(t)
	rec := run(t, svc, "notifybirthday <#555>")
	assert.Contains(t, rec.All(), "Manage Server")

	svc.Config = &config.Config{OwnerID: "u1"}
	rec = run(t, svc, "notifybirthday <#555>")
	assert.Contains(t, rec.All(), "<#555>")
	ch, err := svc.Storage.BirthdayChannel("g1")
	require.NoError(t, err)
	assert.Equal(t, "555", ch)
}

func TestRemove(t *testing.T) {
	svc := services(t)
	run(t, svc, "setbirthday 06-10")
	rec := run(t, svc, "birthday remove")
	assert.Contains(t, rec.All(), "forgotten")
	rec = run(t, svc, "birthday remove")
	assert.Contains(t, rec.All(), "haven't set")
}

func TestFact(t *testing.T) {
	defer func(f func() float64) { rnd = f }(rnd)
	rnd = func() float64 { return 0 }
	rec := run(t, services(t), "randombdfact")
	assert.Contains(t, rec.All(), facts[0])
}
