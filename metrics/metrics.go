// Package metrics exposes Prometheus counters for the progression engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Completions counts ledger decisions by source type and outcome (accepted / duplicate).
var Completions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "progression",
	Name:      "completions_total",
	Help:      "Completion ledger decisions by source type and outcome.",
}, []string{"source", "outcome"})

// XPAwarded counts experience credited after multipliers.
var XPAwarded = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "progression",
	Name:      "xp_awarded_total",
	Help:      "Experience credited to users after multipliers.",
})

// GoldAwarded counts currency credited after multipliers.
var GoldAwarded = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "progression",
	Name:      "gold_awarded_total",
	Help:      "Gold credited to users after multipliers.",
})

// LevelUps counts level transitions.
var LevelUps = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "progression",
	Name:      "level_ups_total",
	Help:      "Number of user level increments.",
})

// RaidTransitions counts terminal raid transitions by resulting status.
var RaidTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "progression",
	Name:      "raid_transitions_total",
	Help:      "Guild raid terminal transitions by status.",
}, []string{"status"})

// ThemesUnlocked counts dungeon theme grants.
var ThemesUnlocked = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "progression",
	Name:      "themes_unlocked_total",
	Help:      "Dungeon themes granted to users.",
})

// TreasuryGold tracks gold flowing in and out of guild treasuries.
var TreasuryGold = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "progression",
	Name:      "treasury_gold_total",
	Help:      "Gold donated to or spent from guild treasuries.",
}, []string{"direction"})

// DegradedReads counts progress reads served from the default snapshot.
var DegradedReads = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "progression",
	Name:      "degraded_reads_total",
	Help:      "Progress reads answered with the default snapshot because storage was unavailable.",
})
