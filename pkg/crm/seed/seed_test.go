package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/admitdesk/admitdesk/pkg/crm/students"
	"github.com/admitdesk/admitdesk/pkg/crm/team"
	"github.com/admitdesk/admitdesk/pkg/observability/logger"
	"github.com/admitdesk/admitdesk/pkg/repository/document"
)

func newSeeder() (*Seeder, *document.MemoryExecutor) {
	exec := document.NewMemoryExecutor()
	studentSvc := students.NewService(exec, logger.Nop{})
	teamSvc := team.NewService(exec, logger.Nop{})
	return New(studentSvc, teamSvc, logger.Nop{}), exec
}

func TestRunWritesProfileCounts(t *testing.T) {
	seeder, exec := newSeeder()
	ctx := context.Background()

	sum, err := seeder.Run(ctx, Profile{Students: 12, Members: 4, Tasks: 6, Seed: 1})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Students != 12 || sum.Members != 4 || sum.Tasks != 6 {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	for col, want := range map[string]int64{
		students.CollectionStudents: 12,
		team.CollectionMembers:      4,
		team.CollectionTasks:        6,
	} {
		n, err := exec.Count(ctx, col, nil)
		if err != nil {
			t.Fatalf("count %s: %v", col, err)
		}
		if n != want {
			t.Fatalf("%s has %d records, want %d", col, n, want)
		}
	}
}

func TestRunIsDeterministic(t *testing.T) {
	ctx := context.Background()
	profile := Profile{Students: 5, Members: 2, Tasks: 3, Seed: 42}

	first, firstExec := newSeeder()
	if _, err := first.Run(ctx, profile); err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, secondExec := newSeeder()
	if _, err := second.Run(ctx, profile); err != nil {
		t.Fatalf("second run: %v", err)
	}

	a, err := firstExec.Get(ctx, students.CollectionStudents, "stu_003")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, err := secondExec.Get(ctx, students.CollectionStudents, "stu_003")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if a["name"] != b["name"] || a["email"] != b["email"] || a["status"] != b["status"] {
		t.Fatalf("runs diverged: %v vs %v", a, b)
	}
}

func TestRunAssignsFromMatchingTeam(t *testing.T) {
	seeder, _ := newSeeder()
	ctx := context.Background()

	if _, err := seeder.Run(ctx, Profile{Students: 0, Members: 6, Tasks: 8, Seed: 7}); err != nil {
		t.Fatalf("run: %v", err)
	}

	page, err := seeder.team.ListTasks(ctx, team.TaskListParams{PageSize: 100})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(page.Items) != 8 {
		t.Fatalf("want 8 tasks, got %d", len(page.Items))
	}
	for _, task := range page.Items {
		if len(task.Assignees) == 0 {
			t.Fatalf("task %s has no assignees", task.ID)
		}
		for _, a := range task.Assignees {
			if a.Team != task.Team {
				t.Fatalf("task %s on %s assigned to %s member %s", task.ID, task.Team, a.Team, a.MemberID)
			}
		}
	}
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yaml")
	if err := os.WriteFile(path, []byte("students: 3\ntasks: 2\nmembers: 1\n"), 0o600); err != nil {
		t.Fatalf("write profile: %v", err)
	}

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Students != 3 || p.Members != 1 || p.Tasks != 2 {
		t.Fatalf("unexpected profile: %+v", p)
	}
	// Omitted fields keep their defaults.
	if p.Seed != DefaultProfile().Seed {
		t.Fatalf("seed default lost: %d", p.Seed)
	}

	if _, err := LoadProfile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestProfileValidate(t *testing.T) {
	if err := (Profile{Students: -1}).Validate(); err == nil {
		t.Fatal("negative count accepted")
	}
	if err := (Profile{Tasks: 3}).Validate(); err == nil {
		t.Fatal("tasks without members accepted")
	}
	if err := DefaultProfile().Validate(); err != nil {
		t.Fatalf("default profile invalid: %v", err)
	}
}
