package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/jllopis/crewsum/pkg/core"
	"github.com/jllopis/crewsum/pkg/errors"
)

// Store holds the validated role and task definitions of a crew file.
// It is never mutated after LoadCrew returns and is safe for concurrent readers.
type Store struct {
	path  string
	roles map[core.RoleName]core.RoleSpec
	tasks map[core.TaskName]core.TaskSpec
}

// LoadCrew reads and validates the crew file at path. Every referenced role
// and task must be present and complete; entries nobody references are ignored.
func LoadCrew(path string) (*Store, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.New(errors.CodeConfigNotFound, "crew file not found", err).
			WithContext("path", path)
	}
	if info.IsDir() {
		return nil, errors.New(errors.CodeConfigNotFound, "crew path is a directory", nil).
			WithContext("path", path)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, errors.New(errors.CodeConfigParse, "crew file is not a valid YAML mapping", err).
			WithContext("path", path)
	}

	s := &Store{
		path:  path,
		roles: make(map[core.RoleName]core.RoleSpec, len(core.Roles)),
		tasks: make(map[core.TaskName]core.TaskSpec, len(core.Tasks)),
	}

	var problems []string
	for _, name := range core.Roles {
		spec, issues := readRole(k, name)
		problems = append(problems, issues...)
		s.roles[name] = spec
	}
	for _, name := range core.Tasks {
		spec, issues := readTask(k, name)
		problems = append(problems, issues...)
		s.tasks[name] = spec
	}

	if len(problems) > 0 {
		return nil, errors.New(errors.CodeConfigSchema, "crew file is incomplete: "+strings.Join(problems, "; "), nil).
			WithContext("path", path).
			WithContext("problems", problems)
	}
	return s, nil
}

func readRole(k *koanf.Koanf, name core.RoleName) (core.RoleSpec, []string) {
	prefix := "agents." + string(name)
	if !k.Exists(prefix) {
		return core.RoleSpec{}, []string{fmt.Sprintf("agent %q is missing", name)}
	}

	var problems []string
	required := func(key string) string {
		v := strings.TrimSpace(k.String(prefix + "." + key))
		if v == "" {
			problems = append(problems, fmt.Sprintf("agent %q lacks %s", name, key))
		}
		return v
	}

	spec := core.RoleSpec{
		Name:          name,
		Role:          required("role"),
		Goal:          required("goal"),
		Backstory:     required("backstory"),
		MaxIterations: core.DefaultMaxIterations,
		Verbose:       true,
	}
	if k.Exists(prefix + ".max_iter") {
		spec.MaxIterations = k.Int(prefix + ".max_iter")
		if spec.MaxIterations < 1 {
			problems = append(problems, fmt.Sprintf("agent %q max_iter must be at least 1", name))
		}
	}
	if k.Exists(prefix + ".verbose") {
		spec.Verbose = k.Bool(prefix + ".verbose")
	}
	return spec, problems
}

func readTask(k *koanf.Koanf, name core.TaskName) (core.TaskSpec, []string) {
	prefix := "tasks." + string(name)
	if !k.Exists(prefix) {
		return core.TaskSpec{}, []string{fmt.Sprintf("task %q is missing", name)}
	}

	var problems []string
	desc := k.String(prefix + ".description")
	if strings.TrimSpace(desc) == "" {
		problems = append(problems, fmt.Sprintf("task %q lacks description", name))
	}
	expected := k.String(prefix + ".expected_output")
	if strings.TrimSpace(expected) == "" {
		problems = append(problems, fmt.Sprintf("task %q lacks expected_output", name))
	}
	return core.TaskSpec{
		Name:                name,
		DescriptionTemplate: desc,
		ExpectedOutput:      expected,
	}, problems
}

// Path returns the file the store was loaded from.
func (s *Store) Path() string { return s.path }

// Role returns the definition of name.
func (s *Store) Role(name core.RoleName) (core.RoleSpec, bool) {
	spec, ok := s.roles[name]
	return spec, ok
}

// Task returns the definition of name.
func (s *Store) Task(name core.TaskName) (core.TaskSpec, bool) {
	spec, ok := s.tasks[name]
	return spec, ok
}

// Roles returns the loaded roles sorted by name.
func (s *Store) Roles() []core.RoleSpec {
	out := make([]core.RoleSpec, 0, len(s.roles))
	for _, spec := range s.roles {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Tasks returns the loaded tasks sorted by name.
func (s *Store) Tasks() []core.TaskSpec {
	out := make([]core.TaskSpec, 0, len(s.tasks))
	for _, spec := range s.tasks {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
