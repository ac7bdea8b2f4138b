package pipeline

import (
	"testing"
)

func TestContextValidate(t *testing.T) {
	tests := []struct {
		name    string
		ctx     Context
		wantErr bool
	}{
		{"default single stage", Context{NumPipelineStages: 1, PipelineStageID: 0, NumGradientAccumulationSteps: 1}, false},
		{"middle stage", Context{NumPipelineStages: 4, PipelineStageID: 2, NumGradientAccumulationSteps: 8}, false},
		{"zero stages", Context{NumPipelineStages: 0, PipelineStageID: 0, NumGradientAccumulationSteps: 1}, true},
		{"stage id out of range", Context{NumPipelineStages: 2, PipelineStageID: 2, NumGradientAccumulationSteps: 1}, true},
		{"negative stage id", Context{NumPipelineStages: 2, PipelineStageID: -1, NumGradientAccumulationSteps: 1}, true},
		{"zero accumulation steps", Context{NumPipelineStages: 2, PipelineStageID: 0, NumGradientAccumulationSteps: 0}, true},
	}

	for _, test := range tests {
		err := test.ctx.Validate()
		if (err != nil) != test.wantErr {
			t.Errorf("%s: Validate() error = %v, wantErr %v", test.name, err, test.wantErr)
		}
	}
}

func TestStagePredicates(t *testing.T) {
	single := NewContext()
	if !single.IsFirstStage() || !single.IsLastStage() {
		t.Error("a single-stage context should be both first and last stage")
	}

	first := &Context{NumPipelineStages: 3, PipelineStageID: 0, NumGradientAccumulationSteps: 1}
	if !first.IsFirstStage() || first.IsLastStage() {
		t.Error("stage 0 of 3 should be first but not last")
	}

	last := &Context{NumPipelineStages: 3, PipelineStageID: 2, NumGradientAccumulationSteps: 1}
	if last.IsFirstStage() || !last.IsLastStage() {
		t.Error("stage 2 of 3 should be last but not first")
	}
}

func TestSlotAndWorkerID(t *testing.T) {
	ctx := &Context{NumPipelineStages: 2, PipelineStageID: 0, NumGradientAccumulationSteps: 3}

	tests := []struct {
		step       uint64
		wantSlot   int
		wantWorker int
	}{
		{0, 0, 0},
		{1, 1, 1},
		{2, 2, 0},
		{3, 0, 1},
		{4, 1, 0},
		{5, 2, 1},
		{6, 0, 0},
	}

	for _, test := range tests {
		if got := ctx.Slot(test.step); got != test.wantSlot {
			t.Errorf("Slot(%d) = %d, expected %d", test.step, got, test.wantSlot)
		}
		if got := ctx.WorkerID(test.step); got != test.wantWorker {
			t.Errorf("WorkerID(%d) = %d, expected %d", test.step, got, test.wantWorker)
		}
	}
}

func TestAllowLists(t *testing.T) {
	single := NewContext()
	if !single.AllowedFeed("anything") || !single.AllowedFetch("anything") {
		t.Error("single-stage context should allow every feed and fetch")
	}

	staged := &Context{
		NumPipelineStages:            2,
		PipelineStageID:              1,
		NumGradientAccumulationSteps: 1,
		FeedNames:                    []string{"labels", "loss_scale"},
		FetchNames:                   []string{"loss"},
	}

	tests := []struct {
		name    string
		feed    bool
		allowed bool
	}{
		{"labels", true, true},
		{"loss_scale", true, true},
		{"input_ids", true, false},
		{"loss", false, true},
		{"logits", false, false},
	}

	for _, test := range tests {
		var got bool
		if test.feed {
			got = staged.AllowedFeed(test.name)
		} else {
			got = staged.AllowedFetch(test.name)
		}
		if got != test.allowed {
			t.Errorf("allow-list check for %q = %v, expected %v", test.name, got, test.allowed)
		}
	}
}
