package pipeline

import (
	"fmt"
	"slices"
	"strings"

	"reidpipe/internal/experiment"
	"reidpipe/internal/services"
)

// Graph is the explicit, inspectable list of pipeline stages and their
// declared dependencies. The shape is fixed: exactly one train stage at the
// root, any number of extraction stages consuming its checkpoint.
//
// NewGraph enforces the structural rules; Validate additionally enforces the
// cross-stage configuration invariants. Keeping the two apart lets callers
// build a structurally sound graph whose semantic problems surface at
// resolution time, before any collaborator process is launched.
type Graph struct {
	stages []Stage
	index  map[string]int
}

// ExtractionSpec describes one extraction stage of the default graph.
type ExtractionSpec struct {
	Subset Subset
	Window string
}

// DefaultGraph builds the standard pipeline shape for an experiment: one
// train stage feeding one extraction stage per spec, every stage declaring
// the experiment's feature geometry.
func DefaultGraph(exp experiment.Config, extractions []ExtractionSpec) (*Graph, error) {
	stages := make([]Stage, 0, len(extractions)+1)
	stages = append(stages, Stage{
		Name:        StageTrain,
		Kind:        KindTrain,
		Features:    exp.Features,
		OutputLayer: exp.OutputLayer,
	})
	for _, spec := range extractions {
		stages = append(stages, Stage{
			Name:        ExtractStageName(spec.Subset),
			Kind:        KindExtract,
			Needs:       StageTrain,
			Subset:      spec.Subset,
			Window:      spec.Window,
			Features:    exp.Features,
			OutputLayer: exp.OutputLayer,
		})
	}
	return NewGraph(stages...)
}

// NewGraph assembles a graph from stage declarations and rejects structural
// problems: duplicate or empty names, unknown kinds or subsets, missing or
// dangling dependencies, and any shape other than one train stage at the
// root.
func NewGraph(stages ...Stage) (*Graph, error) {
	if len(stages) == 0 {
		return nil, graphErr("at least one stage is required")
	}
	index := make(map[string]int, len(stages))
	trainCount := 0
	for i, stage := range stages {
		name := strings.TrimSpace(stage.Name)
		if name == "" {
			return nil, graphErr("stage name is required")
		}
		if _, dup := index[name]; dup {
			return nil, graphErr(fmt.Sprintf("duplicate stage name %q", name))
		}
		index[name] = i
		switch stage.Kind {
		case KindTrain:
			trainCount++
			if stage.Needs != "" {
				return nil, graphErr(fmt.Sprintf("train stage %q cannot declare a dependency", name))
			}
			if stage.Subset != "" {
				return nil, graphErr(fmt.Sprintf("train stage %q cannot declare a subset", name))
			}
		case KindExtract:
			if strings.TrimSpace(stage.Needs) == "" {
				return nil, graphErr(fmt.Sprintf("extraction stage %q must name the train stage it consumes", name))
			}
			if _, err := ParseSubset(string(stage.Subset)); err != nil {
				return nil, graphErr(fmt.Sprintf("extraction stage %q: %v", name, err))
			}
		default:
			return nil, graphErr(fmt.Sprintf("stage %q has unknown kind %q", name, stage.Kind))
		}
		if stage.Features <= 0 {
			return nil, graphErr(fmt.Sprintf("stage %q must declare features greater than zero", name))
		}
		if strings.TrimSpace(stage.OutputLayer) == "" {
			return nil, graphErr(fmt.Sprintf("stage %q must declare an output layer", name))
		}
	}
	if trainCount != 1 {
		return nil, graphErr(fmt.Sprintf("exactly one train stage is required, got %d", trainCount))
	}
	for _, stage := range stages {
		if stage.Kind != KindExtract {
			continue
		}
		upstreamIdx, ok := index[stage.Needs]
		if !ok {
			return nil, graphErr(fmt.Sprintf("extraction stage %q depends on unknown stage %q", stage.Name, stage.Needs))
		}
		if stages[upstreamIdx].Kind != KindTrain {
			return nil, graphErr(fmt.Sprintf("extraction stage %q depends on %q, which is not a train stage", stage.Name, stage.Needs))
		}
	}
	return &Graph{stages: slices.Clone(stages), index: index}, nil
}

// Validate runs the pre-launch configuration check: every extraction stage
// must declare the same feature dimensionality and output layer as the train
// stage it consumes. A disagreement is fatal before any process starts.
func (g *Graph) Validate() error {
	for _, stage := range g.stages {
		if stage.Kind != KindExtract {
			continue
		}
		if err := checkEdge(stage, g.stages[g.index[stage.Needs]]); err != nil {
			return err
		}
	}
	return nil
}

// Stages returns the declared stage list in order.
func (g *Graph) Stages() []Stage {
	return slices.Clone(g.stages)
}

// Stage looks up a stage by name.
func (g *Graph) Stage(name string) (Stage, bool) {
	idx, ok := g.index[name]
	if !ok {
		return Stage{}, false
	}
	return g.stages[idx], true
}

// TrainStage returns the graph's single train stage.
func (g *Graph) TrainStage() Stage {
	for _, stage := range g.stages {
		if stage.Kind == KindTrain {
			return stage
		}
	}
	// NewGraph guarantees one train stage exists.
	return Stage{}
}

// ExtractStages returns the extraction stages in declared order.
func (g *Graph) ExtractStages() []Stage {
	out := make([]Stage, 0, len(g.stages))
	for _, stage := range g.stages {
		if stage.Kind == KindExtract {
			out = append(out, stage)
		}
	}
	return out
}

// Dependents returns the stages that consume the named stage's artifact, in
// declared order.
func (g *Graph) Dependents(name string) []Stage {
	out := make([]Stage, 0, len(g.stages))
	for _, stage := range g.stages {
		if stage.Needs == name {
			out = append(out, stage)
		}
	}
	return out
}

func checkEdge(stage, upstream Stage) error {
	if stage.Features != upstream.Features {
		return &ConfigMismatchError{
			Stage:    stage.Name,
			Upstream: upstream.Name,
			Field:    "features",
			Want:     fmt.Sprintf("%d", upstream.Features),
			Got:      fmt.Sprintf("%d", stage.Features),
		}
	}
	if stage.OutputLayer != upstream.OutputLayer {
		return &ConfigMismatchError{
			Stage:    stage.Name,
			Upstream: upstream.Name,
			Field:    "output-layer",
			Want:     upstream.OutputLayer,
			Got:      stage.OutputLayer,
		}
	}
	return nil
}

func graphErr(message string) error {
	return services.Wrap(services.ErrConfiguration, "pipeline", "graph", message, nil)
}
