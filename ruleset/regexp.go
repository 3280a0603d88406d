// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package ruleset implements include/exclude matching of strings such as request paths.
package ruleset

import (
	"regexp"
	"strings"
)

// RegexpMatcher matches strings against include and exclude rules.
// Exclude rules take precedence over include rules.
type RegexpMatcher struct {
	include *regexp.Regexp
	exclude *regexp.Regexp
}

// NewRegexpMatcher returns the RegexpMatcher with given include and exclude rules.
// If there are no include rules, every string not excluded matches.
func NewRegexpMatcher(include, exclude []*regexp.Regexp) *RegexpMatcher {
	return &RegexpMatcher{
		include: join(include),
		exclude: join(exclude),
	}
}

func join(rules []*regexp.Regexp) *regexp.Regexp {
	if len(rules) == 0 {
		return nil
	}
	if len(rules) == 1 {
		return rules[0]
	}

	var sb strings.Builder
	for i := range rules {
		if i > 0 {
			sb.WriteString("|")
		}
		sb.WriteString("(?:")
		sb.WriteString(rules[i].String())
		sb.WriteString(")")
	}
	return regexp.MustCompile(sb.String())
}

// Match returns true if the given string matches at least one of the include rules
// and does not match the exclude rules.
func (r *RegexpMatcher) Match(s string) bool {
	if r.exclude != nil && r.exclude.MatchString(s) {
		return false
	}
	return r.include == nil || r.include.MatchString(s)
}

var allRegexp = regexp.MustCompile(".*")

// RegexpListItem is a rule in a list of rules, "-" prefix marks an exclude rule.
type RegexpListItem struct {
	*regexp.Regexp
	Exclude bool
}

// ParseRegexpListItem parses a rule, "all" is a shorthand for ".*".
func ParseRegexpListItem(val string) (RegexpListItem, error) {
	val, exclude := strings.CutPrefix(val, "-")
	if val == "all" {
		return RegexpListItem{allRegexp, exclude}, nil
	}
	r, err := regexp.Compile(val)
	if err != nil {
		return RegexpListItem{}, err
	}
	return RegexpListItem{r, exclude}, nil
}

func (r RegexpListItem) String() string {
	if r.Exclude {
		return "-" + r.Regexp.String()
	}
	return r.Regexp.String()
}

func NewRegexpMatcherFromList(l []RegexpListItem) *RegexpMatcher {
	var include, exclude []*regexp.Regexp
	for i := range l {
		if l[i].Exclude {
			exclude = append(exclude, l[i].Regexp)
		} else {
			include = append(include, l[i].Regexp)
		}
	}
	return NewRegexpMatcher(include, exclude)
}
