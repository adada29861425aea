package structs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobEligible(t *testing.T) {
	cases := []struct {
		Name   string
		Given  *Job
		Expect bool
	}{
		{"Queued", &Job{Status: QUEUED}, true},
		{"Running", &Job{Status: RUNNING}, true},
		{"Paused", &Job{Status: PAUSED}, false},
		{"Stopped", &Job{Status: STOPPED, Done: true}, false},
		{"DoneFlagWins", &Job{Status: RUNNING, Done: true}, false},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			assert.Equal(t, c.Expect, c.Given.Eligible())
		})
	}
}

func TestJobRemaining(t *testing.T) {
	total := int64(13)

	assert.Equal(t, int64(-1), (&Job{Processed: 5}).Remaining())
	assert.Equal(t, int64(8), (&Job{Processed: 5, Total: &total}).Remaining())
	assert.Equal(t, int64(0), (&Job{Processed: 20, Total: &total}).Remaining())
}

func TestJobCopy(t *testing.T) {
	total := int64(3)
	j := &Job{ID: "a", Total: &total, Source: PayloadSource{Items: []byte(`[1,2,3]`)}}

	c := j.Copy()
	*c.Total = 10
	c.Source.Items[1] = 'x'

	assert.Equal(t, int64(3), *j.Total)
	assert.Equal(t, `[1,2,3]`, string(j.Source.Items))
	assert.Equal(t, "a", c.ID)
}

func TestCallerAllowed(t *testing.T) {
	cases := []struct {
		Name   string
		Caller *Caller
		Owner  string
		Expect bool
	}{
		{"Nil", nil, "bob", false},
		{"Admin", &Caller{ID: "x", Admin: true}, "bob", true},
		{"Owner", &Caller{ID: "bob"}, "bob", true},
		{"Stranger", &Caller{ID: "alice"}, "bob", false},
		{"AnonymousNoOwner", &Caller{}, "", false},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			assert.Equal(t, c.Expect, c.Caller.Allowed(c.Owner))
		})
	}
}
