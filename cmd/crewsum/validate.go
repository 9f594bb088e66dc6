package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jllopis/crewsum/pkg/config"
)

type resolvedAgent struct {
	Role          string `yaml:"role"`
	Goal          string `yaml:"goal"`
	Backstory     string `yaml:"backstory"`
	MaxIterations int    `yaml:"max_iter"`
	Verbose       bool   `yaml:"verbose"`
}

type resolvedTask struct {
	Description    string `yaml:"description"`
	ExpectedOutput string `yaml:"expected_output"`
	Agent          string `yaml:"agent"`
}

type resolvedCrew struct {
	Path   string                   `yaml:"path"`
	Agents map[string]resolvedAgent `yaml:"agents"`
	Tasks  map[string]resolvedTask  `yaml:"tasks"`
}

func (a *app) newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the crew file and print the resolved roles and tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := config.LoadCrew(a.cfg.Crew.Path)
			if err != nil {
				return NewConfigError(err, a.cfg.Crew.Path)
			}
			enc := yaml.NewEncoder(a.stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(resolve(store))
		},
	}
}

func resolve(store *config.Store) resolvedCrew {
	out := resolvedCrew{
		Path:   store.Path(),
		Agents: make(map[string]resolvedAgent),
		Tasks:  make(map[string]resolvedTask),
	}
	for _, r := range store.Roles() {
		out.Agents[string(r.Name)] = resolvedAgent{
			Role:          r.Role,
			Goal:          r.Goal,
			Backstory:     r.Backstory,
			MaxIterations: r.MaxIterations,
			Verbose:       r.Verbose,
		}
	}
	for _, t := range store.Tasks() {
		out.Tasks[string(t.Name)] = resolvedTask{
			Description:    t.DescriptionTemplate,
			ExpectedOutput: t.ExpectedOutput,
			Agent:          string(t.Name.AssignedRole()),
		}
	}
	return out
}
