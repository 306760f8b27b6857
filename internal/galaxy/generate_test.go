package galaxy

import (
	"testing"

	"stardrift/server/internal/game"
)

func seedPlayers() []PlayerSeed {
	return []PlayerSeed{
		{ID: "p1", Alias: "Ada"},
		{ID: "p2", Alias: "Grace"},
	}
}

func TestGenerateRequiresTwoPlayers(t *testing.T) {
	if _, err := Generate(game.DefaultSettings(), []PlayerSeed{{ID: "p1"}}, 1); err == nil {
		t.Fatal("single-player galaxy accepted")
	}
	if _, err := Generate(game.DefaultSettings(), nil, 1); err == nil {
		t.Fatal("empty roster accepted")
	}
}

func TestGenerateStarCount(t *testing.T) {
	settings := game.DefaultSettings()
	settings.StarsPerPlayer = 8

	gal, err := Generate(settings, seedPlayers(), 42)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(gal.Stars) != 16 {
		t.Fatalf("stars = %d, want 16", len(gal.Stars))
	}
	if len(gal.Players) != 2 {
		t.Fatalf("players = %d, want 2", len(gal.Players))
	}
}

func TestGenerateAssignsOneHomeStarPerPlayer(t *testing.T) {
	settings := game.DefaultSettings()
	gal, err := Generate(settings, seedPlayers(), 7)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	homes := map[string]int{}
	for _, star := range gal.Stars {
		if !star.HomeStar {
			if star.OwnerID != "" {
				t.Fatalf("non-home star %s has owner %s", star.ID, star.OwnerID)
			}
			continue
		}
		homes[star.OwnerID]++
		if star.Ships != settings.StartingShips {
			t.Fatalf("home star garrison = %d, want %d", star.Ships, settings.StartingShips)
		}
		if star.Infrastructure.Industry == 0 {
			t.Fatal("home star should start with infrastructure")
		}
	}
	if homes["p1"] != 1 || homes["p2"] != 1 {
		t.Fatalf("home star assignment = %v, want one each", homes)
	}

	for _, p := range gal.Players {
		if p.HomeStarID == "" {
			t.Fatalf("player %s has no home star reference", p.ID)
		}
		home := gal.StarByID(p.HomeStarID)
		if home == nil || home.OwnerID != p.ID {
			t.Fatalf("player %s home star reference is wrong", p.ID)
		}
		if p.Credits != settings.StartingCredits {
			t.Fatalf("player %s credits = %d, want %d", p.ID, p.Credits, settings.StartingCredits)
		}
		if p.Research.Active != game.TechWeapons {
			t.Fatalf("player %s should start researching weapons", p.ID)
		}
	}
}

func TestGenerateWormholePairsAreSymmetric(t *testing.T) {
	settings := game.DefaultSettings()
	settings.WormholePairs = 2

	gal, err := Generate(settings, seedPlayers(), 11)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	linked := 0
	for _, star := range gal.Stars {
		if star.WormholeToStarID == "" {
			continue
		}
		linked++
		if star.HomeStar {
			t.Fatalf("home star %s carries a wormhole", star.ID)
		}
		other := gal.StarByID(star.WormholeToStarID)
		if other == nil {
			t.Fatalf("star %s links to unknown star %s", star.ID, star.WormholeToStarID)
		}
		if !game.WormholePaired(star, other) {
			t.Fatalf("wormhole between %s and %s is not mutual", star.ID, other.ID)
		}
	}
	if linked != 4 {
		t.Fatalf("linked stars = %d, want 4 for two pairs", linked)
	}
}

func TestGenerateIsDeterministicPerSeed(t *testing.T) {
	settings := game.DefaultSettings()

	first, err := Generate(settings, seedPlayers(), 99)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := Generate(settings, seedPlayers(), 99)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if len(first.Stars) != len(second.Stars) {
		t.Fatalf("star counts differ: %d vs %d", len(first.Stars), len(second.Stars))
	}
	// Identifiers are random but the layout must repeat.
	for i := range first.Stars {
		if first.Stars[i].Location != second.Stars[i].Location {
			t.Fatalf("star %d moved between runs: %+v vs %+v", i, first.Stars[i].Location, second.Stars[i].Location)
		}
		if first.Stars[i].Name != second.Stars[i].Name {
			t.Fatalf("star %d renamed between runs", i)
		}
		if first.Stars[i].NaturalResources != second.Stars[i].NaturalResources {
			t.Fatalf("star %d resources differ between runs", i)
		}
	}

	third, err := Generate(settings, seedPlayers(), 100)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	same := true
	for i := range first.Stars {
		if first.Stars[i].Location != third.Stars[i].Location {
			same = false
			break
		}
	}
	if same {
		t.Fatal("different seeds produced an identical layout")
	}
}

func TestStarNamesWrapWithSuffix(t *testing.T) {
	settings := game.DefaultSettings()
	settings.StarsPerPlayer = 20

	gal, err := Generate(settings, seedPlayers(), 5)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(gal.Stars) != 40 {
		t.Fatalf("stars = %d, want 40", len(gal.Stars))
	}
	if gal.Stars[0].Name == gal.Stars[26].Name {
		t.Fatalf("wrapped name %q should carry a suffix", gal.Stars[26].Name)
	}
	if gal.Stars[26].Name != gal.Stars[0].Name+" 2" {
		t.Fatalf("wrapped name = %q, want %q", gal.Stars[26].Name, gal.Stars[0].Name+" 2")
	}
}
