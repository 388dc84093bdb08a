package pipeline_test

import (
	"errors"
	"strings"
	"testing"

	"reidpipe/internal/pipeline"
	"reidpipe/internal/services"
	"reidpipe/internal/testsupport"
)

func defaultExtractionSpecs() []pipeline.ExtractionSpec {
	return []pipeline.ExtractionSpec{
		{Subset: pipeline.SubsetGTTest},
		{Subset: pipeline.SubsetDetections},
		{Subset: pipeline.SubsetGTAll},
	}
}

func TestDefaultGraphShape(t *testing.T) {
	graph, err := pipeline.DefaultGraph(testsupport.Experiment(), defaultExtractionSpecs())
	if err != nil {
		t.Fatalf("DefaultGraph() error = %v", err)
	}

	stages := graph.Stages()
	if len(stages) != 4 {
		t.Fatalf("got %d stages, want 4", len(stages))
	}
	if stages[0].Name != pipeline.StageTrain || stages[0].Kind != pipeline.KindTrain {
		t.Fatalf("first stage = %+v, want the train stage", stages[0])
	}

	train := graph.TrainStage()
	if train.Features != 64 || train.OutputLayer != "fc" {
		t.Fatalf("train geometry = %d/%s, want 64/fc", train.Features, train.OutputLayer)
	}

	extracts := graph.ExtractStages()
	if len(extracts) != 3 {
		t.Fatalf("got %d extraction stages, want 3", len(extracts))
	}
	wantNames := []string{"extract_gt_test", "extract_detections", "extract_gt_all"}
	for i, stage := range extracts {
		if stage.Name != wantNames[i] {
			t.Fatalf("extraction %d = %q, want %q", i, stage.Name, wantNames[i])
		}
		if stage.Needs != pipeline.StageTrain {
			t.Fatalf("extraction %q needs %q, want train", stage.Name, stage.Needs)
		}
		if stage.Features != train.Features || stage.OutputLayer != train.OutputLayer {
			t.Fatalf("extraction %q does not inherit the experiment geometry", stage.Name)
		}
	}

	if deps := graph.Dependents(pipeline.StageTrain); len(deps) != 3 {
		t.Fatalf("got %d dependents of train, want 3", len(deps))
	}
	if _, ok := graph.Stage("extract_detections"); !ok {
		t.Fatal("Stage(extract_detections) not found")
	}
	if _, ok := graph.Stage("bogus"); ok {
		t.Fatal("Stage(bogus) found, want missing")
	}
}

func TestNewGraphRejectsStructuralProblems(t *testing.T) {
	train := pipeline.Stage{Name: "train", Kind: pipeline.KindTrain, Features: 64, OutputLayer: "fc"}
	extract := pipeline.Stage{
		Name: "extract_gt_test", Kind: pipeline.KindExtract, Needs: "train",
		Subset: pipeline.SubsetGTTest, Features: 64, OutputLayer: "fc",
	}

	tests := []struct {
		name    string
		stages  []pipeline.Stage
		wantMsg string
	}{
		{
			name:    "empty graph",
			stages:  nil,
			wantMsg: "at least one stage",
		},
		{
			name: "blank stage name",
			stages: []pipeline.Stage{
				{Name: "  ", Kind: pipeline.KindTrain, Features: 64, OutputLayer: "fc"},
			},
			wantMsg: "stage name is required",
		},
		{
			name:    "duplicate stage name",
			stages:  []pipeline.Stage{train, {Name: "train", Kind: pipeline.KindExtract, Needs: "train", Subset: pipeline.SubsetGTAll, Features: 64, OutputLayer: "fc"}},
			wantMsg: "duplicate stage name",
		},
		{
			name: "train with dependency",
			stages: []pipeline.Stage{
				{Name: "train", Kind: pipeline.KindTrain, Needs: "other", Features: 64, OutputLayer: "fc"},
			},
			wantMsg: "cannot declare a dependency",
		},
		{
			name: "train with subset",
			stages: []pipeline.Stage{
				{Name: "train", Kind: pipeline.KindTrain, Subset: pipeline.SubsetGTAll, Features: 64, OutputLayer: "fc"},
			},
			wantMsg: "cannot declare a subset",
		},
		{
			name: "extraction without dependency",
			stages: []pipeline.Stage{train, {
				Name: "extract_gt_test", Kind: pipeline.KindExtract,
				Subset: pipeline.SubsetGTTest, Features: 64, OutputLayer: "fc",
			}},
			wantMsg: "must name the train stage",
		},
		{
			name: "extraction with unknown subset",
			stages: []pipeline.Stage{train, {
				Name: "extract_bogus", Kind: pipeline.KindExtract, Needs: "train",
				Subset: pipeline.Subset("bogus"), Features: 64, OutputLayer: "fc",
			}},
			wantMsg: "unknown subset",
		},
		{
			name: "unknown kind",
			stages: []pipeline.Stage{
				{Name: "mystery", Kind: pipeline.Kind("evaluate"), Features: 64, OutputLayer: "fc"},
			},
			wantMsg: "unknown kind",
		},
		{
			name: "zero features",
			stages: []pipeline.Stage{
				{Name: "train", Kind: pipeline.KindTrain, OutputLayer: "fc"},
			},
			wantMsg: "features greater than zero",
		},
		{
			name: "missing output layer",
			stages: []pipeline.Stage{
				{Name: "train", Kind: pipeline.KindTrain, Features: 64},
			},
			wantMsg: "must declare an output layer",
		},
		{
			name:    "no train stage",
			stages:  []pipeline.Stage{extract},
			wantMsg: "exactly one train stage",
		},
		{
			name: "two train stages",
			stages: []pipeline.Stage{train,
				{Name: "train_b", Kind: pipeline.KindTrain, Features: 64, OutputLayer: "fc"},
			},
			wantMsg: "exactly one train stage",
		},
		{
			name: "dangling dependency",
			stages: []pipeline.Stage{train, {
				Name: "extract_gt_test", Kind: pipeline.KindExtract, Needs: "missing",
				Subset: pipeline.SubsetGTTest, Features: 64, OutputLayer: "fc",
			}},
			wantMsg: "unknown stage",
		},
		{
			name: "dependency on extraction",
			stages: []pipeline.Stage{train, extract, {
				Name: "extract_gt_all", Kind: pipeline.KindExtract, Needs: "extract_gt_test",
				Subset: pipeline.SubsetGTAll, Features: 64, OutputLayer: "fc",
			}},
			wantMsg: "not a train stage",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := pipeline.NewGraph(tc.stages...)
			if err == nil {
				t.Fatal("NewGraph() succeeded, want error")
			}
			if !errors.Is(err, services.ErrConfiguration) {
				t.Fatalf("error %v is not a configuration error", err)
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Fatalf("error %q does not mention %q", err, tc.wantMsg)
			}
		})
	}
}

func TestValidateDetectsGeometryMismatch(t *testing.T) {
	graph, err := pipeline.NewGraph(
		pipeline.Stage{Name: "train", Kind: pipeline.KindTrain, Features: 64, OutputLayer: "fc"},
		pipeline.Stage{
			Name: "extract_gt_test", Kind: pipeline.KindExtract, Needs: "train",
			Subset: pipeline.SubsetGTTest, Features: 128, OutputLayer: "fc",
		},
	)
	if err != nil {
		t.Fatalf("NewGraph() error = %v", err)
	}

	err = graph.Validate()
	if err == nil {
		t.Fatal("Validate() succeeded, want mismatch error")
	}
	var mismatch *pipeline.ConfigMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("error %T is not a ConfigMismatchError", err)
	}
	if mismatch.Field != "features" || mismatch.Want != "64" || mismatch.Got != "128" {
		t.Fatalf("mismatch = %+v, want features 64 vs 128", mismatch)
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("error %v is not a configuration error", err)
	}
}

func TestValidateDetectsOutputLayerMismatch(t *testing.T) {
	graph, err := pipeline.NewGraph(
		pipeline.Stage{Name: "train", Kind: pipeline.KindTrain, Features: 64, OutputLayer: "fc"},
		pipeline.Stage{
			Name: "extract_gt_test", Kind: pipeline.KindExtract, Needs: "train",
			Subset: pipeline.SubsetGTTest, Features: 64, OutputLayer: "avg",
		},
	)
	if err != nil {
		t.Fatalf("NewGraph() error = %v", err)
	}

	var mismatch *pipeline.ConfigMismatchError
	if err := graph.Validate(); !errors.As(err, &mismatch) {
		t.Fatalf("Validate() error = %v, want ConfigMismatchError", err)
	}
	if mismatch.Field != "output-layer" || mismatch.Want != "fc" || mismatch.Got != "avg" {
		t.Fatalf("mismatch = %+v, want output-layer fc vs avg", mismatch)
	}
}

func TestParseSubset(t *testing.T) {
	tests := []struct {
		raw     string
		want    pipeline.Subset
		wantErr bool
	}{
		{raw: "gt_test", want: pipeline.SubsetGTTest},
		{raw: "detections", want: pipeline.SubsetDetections},
		{raw: "gt_all", want: pipeline.SubsetGTAll},
		{raw: "  gt_all  ", want: pipeline.SubsetGTAll},
		{raw: "GT_TEST", wantErr: true},
		{raw: "", wantErr: true},
		{raw: "bogus", wantErr: true},
	}
	for _, tc := range tests {
		got, err := pipeline.ParseSubset(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseSubset(%q) succeeded, want error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseSubset(%q) error = %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("ParseSubset(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}
