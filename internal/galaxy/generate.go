// Package galaxy generates the star field a new game starts with: a seeded
// circular scatter with minimum spacing, one home star per player placed on
// the rim, and optional wormhole pairs.
package galaxy

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/google/uuid"

	"stardrift/server/internal/game"
	"stardrift/server/internal/geom"
)

// minStarSpacing keeps generated stars at least this far apart so two stars
// never overlap visually or collapse into a free hop.
const minStarSpacing = game.LightYear / 2

var starNames = []string{
	"Altair", "Bellatrix", "Capella", "Deneb", "Electra", "Fomalhaut",
	"Gienah", "Hadar", "Izar", "Jabbah", "Kochab", "Lesath", "Mintaka",
	"Naos", "Okul", "Polaris", "Quaint", "Rigel", "Sargas", "Thuban",
	"Unukalhai", "Vega", "Wezen", "Xamidimura", "Yildun", "Zosma",
}

// PlayerSeed names the participants a new galaxy is generated for.
type PlayerSeed struct {
	ID    string
	Alias string
}

// Generate builds a galaxy for the given players using the settings'
// generation knobs. The same seed always yields the same galaxy.
func Generate(settings game.Settings, players []PlayerSeed, seed uint64) (game.Galaxy, error) {
	if len(players) < 2 {
		return game.Galaxy{}, fmt.Errorf("galaxy: need at least 2 players, got %d", len(players))
	}
	starsPerPlayer := settings.StarsPerPlayer
	if starsPerPlayer < 1 {
		starsPerPlayer = 1
	}
	radius := settings.GalaxyRadius
	if radius <= 0 {
		radius = 500
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	total := starsPerPlayer * len(players)

	gal := game.Galaxy{}
	locations := scatter(rng, total, radius)
	for i, loc := range locations {
		gal.Stars = append(gal.Stars, &game.Star{
			ID:               uuid.NewString(),
			Name:             starName(i),
			Location:         loc,
			NaturalResources: 10 + rng.IntN(40),
		})
	}

	assignHomeStars(&gal, settings, players, radius)
	pairWormholes(&gal, rng, settings.WormholePairs)

	for _, seedPlayer := range players {
		gal.Players = append(gal.Players, newPlayer(seedPlayer, settings, &gal))
	}
	return gal, nil
}

// scatter places count points inside the galaxy disc, rejecting candidates
// closer than the minimum spacing to an accepted point. Rejection sampling
// is bounded; when the disc is too crowded the spacing constraint degrades
// rather than spinning forever.
func scatter(rng *rand.Rand, count int, radius float64) []geom.Point {
	points := make([]geom.Point, 0, count)
	for len(points) < count {
		accepted := false
		for attempt := 0; attempt < 64; attempt++ {
			candidate := randomInDisc(rng, radius)
			if spaced(candidate, points, minStarSpacing) {
				points = append(points, candidate)
				accepted = true
				break
			}
		}
		if !accepted {
			points = append(points, randomInDisc(rng, radius))
		}
	}
	return points
}

func randomInDisc(rng *rand.Rand, radius float64) geom.Point {
	// sqrt keeps the distribution uniform over area rather than clustering
	// at the centre.
	r := radius * math.Sqrt(rng.Float64())
	theta := rng.Float64() * 2 * math.Pi
	return geom.Point{X: r * math.Cos(theta), Y: r * math.Sin(theta)}
}

func spaced(candidate geom.Point, points []geom.Point, spacing float64) bool {
	for _, p := range points {
		if geom.WithinRange(candidate, p, spacing) {
			return false
		}
	}
	return true
}

// assignHomeStars spreads player capitals evenly around the rim by picking,
// for each player, the unowned star nearest an evenly-spaced rim anchor.
func assignHomeStars(gal *game.Galaxy, settings game.Settings, players []PlayerSeed, radius float64) {
	for i, seedPlayer := range players {
		theta := float64(i) / float64(len(players)) * 2 * math.Pi
		anchor := geom.Point{X: radius * math.Cos(theta), Y: radius * math.Sin(theta)}

		var best *game.Star
		bestDist := math.Inf(1)
		for _, star := range gal.Stars {
			if star.OwnerID != "" {
				continue
			}
			if d := geom.DistanceSquared(anchor, star.Location); d < bestDist {
				best = star
				bestDist = d
			}
		}
		if best == nil {
			continue
		}
		best.OwnerID = seedPlayer.ID
		best.HomeStar = true
		best.Ships = settings.StartingShips
		best.Infrastructure = game.Infrastructure{Economy: 5, Industry: 5, Science: 1}
	}
}

// pairWormholes links the requested number of unowned, unpaired star pairs,
// preferring distant pairs so the link is actually worth taking.
func pairWormholes(gal *game.Galaxy, rng *rand.Rand, pairs int) {
	for i := 0; i < pairs; i++ {
		candidates := make([]*game.Star, 0, len(gal.Stars))
		for _, star := range gal.Stars {
			if star.WormholeToStarID == "" && !star.HomeStar {
				candidates = append(candidates, star)
			}
		}
		if len(candidates) < 2 {
			return
		}
		a := candidates[rng.IntN(len(candidates))]
		var b *game.Star
		bestDist := -1.0
		for _, candidate := range candidates {
			if candidate.ID == a.ID {
				continue
			}
			if d := geom.DistanceSquared(a.Location, candidate.Location); d > bestDist {
				b = candidate
				bestDist = d
			}
		}
		a.WormholeToStarID = b.ID
		b.WormholeToStarID = a.ID
	}
}

func newPlayer(seedPlayer PlayerSeed, settings game.Settings, gal *game.Galaxy) *game.Player {
	player := &game.Player{
		ID:      seedPlayer.ID,
		Alias:   seedPlayer.Alias,
		Credits: settings.StartingCredits,
		Research: game.Research{
			Levels:   map[game.Technology]int{},
			Progress: map[game.Technology]int{},
			Active:   game.TechWeapons,
		},
		Diplomacy: map[string]game.DiplomaticStatus{},
	}
	for _, star := range gal.Stars {
		if star.HomeStar && star.OwnerID == seedPlayer.ID {
			player.HomeStarID = star.ID
			break
		}
	}
	return player
}

func starName(i int) string {
	name := starNames[i%len(starNames)]
	if i >= len(starNames) {
		return fmt.Sprintf("%s %d", name, i/len(starNames)+1)
	}
	return name
}
