// Package seed populates a deployment with deterministic demo data.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/admitdesk/admitdesk/pkg/crm"
	"github.com/admitdesk/admitdesk/pkg/crm/students"
	"github.com/admitdesk/admitdesk/pkg/crm/team"
	"github.com/admitdesk/admitdesk/pkg/observability/logger"
	"gopkg.in/yaml.v3"
)

// Profile controls how much demo data is generated. The random seed makes
// repeated runs reproduce identical data sets.
type Profile struct {
	Students int   `yaml:"students"`
	Members  int   `yaml:"members"`
	Tasks    int   `yaml:"tasks"`
	Seed     int64 `yaml:"seed"`
}

// DefaultProfile is the data set used when no profile file is given.
func DefaultProfile() Profile {
	return Profile{Students: 50, Members: 10, Tasks: 15, Seed: 1}
}

// LoadProfile reads a YAML profile. Omitted fields fall back to the default
// profile's values.
func LoadProfile(path string) (Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	p := DefaultProfile()
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Profile{}, fmt.Errorf("parse profile: %w", err)
	}
	return p, p.Validate()
}

func (p Profile) Validate() error {
	if p.Students < 0 || p.Members < 0 || p.Tasks < 0 {
		return fmt.Errorf("profile counts must not be negative")
	}
	if p.Tasks > 0 && p.Members == 0 {
		return fmt.Errorf("tasks need at least one team member to assign")
	}
	return nil
}

// Summary reports what one run wrote.
type Summary struct {
	Students int
	Members  int
	Tasks    int
}

// Seeder writes demo data through the regular services so every record
// passes the same validation as real traffic.
type Seeder struct {
	students *students.Service
	team     *team.Service
	log      logger.Logger
}

func New(studentSvc *students.Service, teamSvc *team.Service, log logger.Logger) *Seeder {
	return &Seeder{students: studentSvc, team: teamSvc, log: log}
}

var (
	firstNames = []string{
		"Priya", "Amir", "Mei", "Lucas", "Sofia", "Noah", "Aisha", "Diego",
		"Hana", "Ivan", "Lena", "Omar", "Rosa", "Tom", "Yuki", "Zara",
	}
	lastNames = []string{
		"Sharma", "Khan", "Chen", "Silva", "Rossi", "Park", "Diallo",
		"Garcia", "Sato", "Petrov", "Weber", "Haddad", "Lopez", "Reed",
	}
	countries = []string{"IN", "NG", "BR", "VN", "CN", "MX", "EG", "DE", "US", "KR"}
	grades    = []string{"10", "11", "12", "gap year"}

	taskTitles = []string{
		"Call new sign-ups",
		"Review essay drafts",
		"Follow up on stalled applications",
		"Prepare shortlist review",
		"Plan webinar outreach",
		"Refresh landing page copy",
		"Audit ad campaign spend",
		"Schedule counselor check-ins",
	}
)

// Run writes the profile's data set. Existing records with the same ids are
// overwritten, so reruns converge instead of accumulating.
func (s *Seeder) Run(ctx context.Context, p Profile) (Summary, error) {
	if err := p.Validate(); err != nil {
		return Summary{}, err
	}
	rng := rand.New(rand.NewSource(p.Seed))
	statuses := crm.Statuses()
	teams := crm.Teams()

	var sum Summary

	for i := 0; i < p.Students; i++ {
		first := firstNames[rng.Intn(len(firstNames))]
		last := lastNames[rng.Intn(len(lastNames))]
		id := fmt.Sprintf("stu_%03d", i+1)
		payload := students.NewStudent{
			Name:           first + " " + last,
			Email:          fmt.Sprintf("%s.%s.%d@example.com", strings.ToLower(first), strings.ToLower(last), i+1),
			Phone:          fmt.Sprintf("+1555%07d", rng.Intn(10000000)),
			Country:        countries[rng.Intn(len(countries))],
			Grade:          grades[rng.Intn(len(grades))],
			Status:         statuses[rng.Intn(len(statuses))],
			HighIntent:     rng.Intn(4) == 0,
			NeedsEssayHelp: rng.Intn(3) == 0,
			Progress:       rng.Intn(101),
		}
		if _, err := s.students.Create(ctx, id, payload); err != nil {
			return sum, fmt.Errorf("seed student %s: %w", id, err)
		}
		sum.Students++
	}

	membersByTeam := map[crm.Team][]string{}
	for i := 0; i < p.Members; i++ {
		first := firstNames[rng.Intn(len(firstNames))]
		last := lastNames[rng.Intn(len(lastNames))]
		id := fmt.Sprintf("mem_%03d", i+1)
		memberTeam := teams[i%len(teams)]
		payload := team.NewMember{
			Name:   first + " " + last,
			Email:  fmt.Sprintf("%s.%s@admitdesk.example", strings.ToLower(first), strings.ToLower(last)),
			Team:   memberTeam,
			Active: true,
		}
		if _, err := s.team.CreateMember(ctx, id, payload); err != nil {
			return sum, fmt.Errorf("seed member %s: %w", id, err)
		}
		membersByTeam[memberTeam] = append(membersByTeam[memberTeam], id)
		sum.Members++
	}

	now := time.Now().UTC()
	for i := 0; i < p.Tasks; i++ {
		id := fmt.Sprintf("task_%03d", i+1)
		taskTeam := teams[i%len(teams)]
		pool := membersByTeam[taskTeam]
		if len(pool) == 0 {
			// No member on this team; pull from any team instead.
			for _, ids := range membersByTeam {
				pool = ids
				break
			}
		}
		assignees := pickAssignees(rng, pool)
		due := now.Add(time.Duration(1+rng.Intn(21)) * 24 * time.Hour)
		payload := team.NewTask{
			Title:       taskTitles[i%len(taskTitles)],
			Description: fmt.Sprintf("Seeded task %d", i+1),
			Team:        taskTeam,
			Status:      crm.TaskStatuses()[rng.Intn(len(crm.TaskStatuses()))],
			Priority:    []crm.Priority{crm.PriorityLow, crm.PriorityMedium, crm.PriorityHigh}[rng.Intn(3)],
			AssigneeIDs: assignees,
			DueAt:       &due,
			CreatedBy:   "seeder",
		}
		if p.Students > 0 && rng.Intn(2) == 0 {
			payload.RelatedStudentID = fmt.Sprintf("stu_%03d", 1+rng.Intn(p.Students))
		}
		if _, err := s.team.CreateTask(ctx, id, payload); err != nil {
			return sum, fmt.Errorf("seed task %s: %w", id, err)
		}
		sum.Tasks++
	}

	s.log.Info("seed run complete",
		"students", sum.Students, "members", sum.Members, "tasks", sum.Tasks)
	return sum, nil
}

// pickAssignees draws one or two distinct members from the pool.
func pickAssignees(rng *rand.Rand, pool []string) []string {
	if len(pool) == 0 {
		return nil
	}
	first := rng.Intn(len(pool))
	ids := []string{pool[first]}
	if len(pool) > 1 && rng.Intn(2) == 0 {
		second := rng.Intn(len(pool) - 1)
		if second >= first {
			second++
		}
		ids = append(ids, pool[second])
	}
	return ids
}
