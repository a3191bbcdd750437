// ABOUTME: Leader seeding for the ubwiyunge server from a TOML file or built-in samples
// ABOUTME: Existing accounts (matched by id or email) are left untouched

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/2389/ubwiyunge/internal/auth"
	"github.com/2389/ubwiyunge/internal/store"
)

// leaderSeed is one [[leaders]] entry in a seed file.
type leaderSeed struct {
	ID            string `toml:"id"`
	FirstName     string `toml:"first_name"`
	LastName      string `toml:"last_name"`
	Email         string `toml:"email"`
	Phone         string `toml:"phone"`
	Position      string `toml:"position"`
	Department    string `toml:"department"`
	OfficeAddress string `toml:"office_address"`
	District      string `toml:"district"`
	Sector        string `toml:"sector"`
	Password      string `toml:"password"`
}

type seedFile struct {
	Leaders []leaderSeed `toml:"leaders"`
}

func (l leaderSeed) leader() store.Leader {
	return store.Leader{
		Profile: store.Profile{
			ID:        l.ID,
			FirstName: l.FirstName,
			LastName:  l.LastName,
			Email:     l.Email,
			Phone:     l.Phone,
			District:  l.District,
			Sector:    l.Sector,
		},
		Position:      l.Position,
		Department:    l.Department,
		OfficeAddress: l.OfficeAddress,
	}
}

// loadSeedFile decodes a TOML seed file. Every leader needs an id and email.
func loadSeedFile(path string) ([]leaderSeed, error) {
	var f seedFile
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys in seed file: %s", strings.Join(keys, ", "))
	}

	var errs []error
	for i, l := range f.Leaders {
		if l.ID == "" {
			errs = append(errs, fmt.Errorf("leaders[%d]: id is required", i))
		}
		if !strings.Contains(l.Email, "@") {
			errs = append(errs, fmt.Errorf("leaders[%d]: email is required", i))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return f.Leaders, nil
}

// sampleLeaders are the district officials shown on the public leaders page.
// They have no password and cannot log in until one is set.
func sampleLeaders() []leaderSeed {
	return []leaderSeed{
		{ID: "mayor_gasabo", FirstName: "Marie Chantal", LastName: "Rwakazina", Email: "mayor@gasabo.gov.rw",
			Position: "Mayor of Gasabo District", Department: "District Administration", District: "Gasabo"},
		{ID: "exec_kimironko", FirstName: "Jean Baptiste", LastName: "Munyangabe", Email: "kimironko@gasabo.gov.rw",
			Position: "Executive Secretary", Department: "Sector Administration", District: "Gasabo", Sector: "Kimironko"},
		{ID: "coord_gatenga", FirstName: "Uwimana", LastName: "Claire", Email: "gatenga@kicukiro.gov.rw",
			Position: "Cell Coordinator", Department: "Cell Administration", District: "Kicukiro", Sector: "Gatenga"},
		{ID: "mayor_kicukiro", FirstName: "Paul", LastName: "Rwabukwisi", Email: "mayor@kicukiro.gov.rw",
			Position: "Mayor of Kicukiro District", Department: "District Administration", District: "Kicukiro"},
		{ID: "exec_kicukiro_center", FirstName: "Mukamana", LastName: "Esperance", Email: "kicukiro.center@kicukiro.gov.rw",
			Position: "Executive Secretary", Department: "Sector Administration", District: "Kicukiro", Sector: "Kicukiro"},
		{ID: "coord_nyanza", FirstName: "Nzeyimana", LastName: "Vincent", Email: "nyanza@kicukiro.gov.rw",
			Position: "Cell Coordinator", Department: "Cell Administration", District: "Kicukiro", Sector: "Nyanza"},
		{ID: "mayor_nyarugenge", FirstName: "Kayitesi", LastName: "Solange", Email: "mayor@nyarugenge.gov.rw",
			Position: "Mayor of Nyarugenge District", Department: "District Administration", District: "Nyarugenge"},
		{ID: "exec_nyarugenge_center", FirstName: "Bizimana", LastName: "Eric", Email: "nyarugenge.center@nyarugenge.gov.rw",
			Position: "Executive Secretary", Department: "Sector Administration", District: "Nyarugenge", Sector: "Nyarugenge"},
	}
}

// seedLeaders registers each leader and reports how many were added and
// how many already existed.
func seedLeaders(ctx context.Context, dir *auth.Directory, leaders []leaderSeed) (added, skipped int, err error) {
	for _, l := range leaders {
		ok, err := dir.SeedLeader(ctx, l.leader(), l.Password)
		if err != nil {
			return added, skipped, fmt.Errorf("seeding %s: %w", l.ID, err)
		}
		if ok {
			added++
		} else {
			skipped++
		}
	}
	return added, skipped, nil
}
