package structs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	cases := []struct {
		Name   string
		Given  *Query
		Expect *Query
	}{
		{
			Name:   "SetsDefaultLimit",
			Given:  &Query{},
			Expect: &Query{Limit: queryLimitDefault},
		},
		{
			Name:   "SetsMaxLimit",
			Given:  &Query{Limit: queryLimitMax + 1},
			Expect: &Query{Limit: queryLimitMax},
		},
		{
			Name:   "SanitizesOffset",
			Given:  &Query{Limit: 10, Offset: -1},
			Expect: &Query{Limit: 10},
		},
		{
			Name:   "NilsEmptyFilters",
			Given:  &Query{Limit: 10, Kinds: []string{}, Statuses: []Status{}},
			Expect: &Query{Limit: 10},
		},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			c.Given.Sanitize()
			assert.Equal(t, c.Expect, c.Given)
		})
	}
}

func TestQueryMatch(t *testing.T) {
	e := &RegistryEntry{JobID: "a", Kind: KindImport, Status: RUNNING, Owner: "bob"}

	cases := []struct {
		Name   string
		Given  *Query
		Expect bool
	}{
		{"NoFilters", &Query{}, true},
		{"OwnerMatch", &Query{Owner: "bob"}, true},
		{"OwnerMismatch", &Query{Owner: "alice"}, false},
		{"KindMatch", &Query{Kinds: []string{KindDelete, KindImport}}, true},
		{"KindMismatch", &Query{Kinds: []string{KindDelete}}, false},
		{"StatusMatch", &Query{Statuses: []Status{RUNNING}}, true},
		{"StatusMismatch", &Query{Statuses: []Status{PAUSED}}, false},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			assert.Equal(t, c.Expect, c.Given.Match(e))
		})
	}
}
