package models

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/lingolens/models/model"
	"github.com/nvr-ai/lingolens/models/postprocess"
)

func TestYOLOClasses(t *testing.T) {
	assert.Equal(t, 80, YOLOClasses.Len())

	tests := []struct {
		idx  int
		name string
	}{
		{0, "person"},
		{2, "car"},
		{16, "dog"},
		{79, "toothbrush"},
	}
	for _, tt := range tests {
		got, err := YOLOClasses.Name(tt.idx)
		require.NoError(t, err)
		assert.Equal(t, tt.name, got)
	}
}

func TestOutputClassSet_UnknownClass(t *testing.T) {
	for _, idx := range []int{-1, 80, 1000} {
		_, err := YOLOClasses.Name(idx)
		assert.True(t, errors.Is(err, ErrUnknownClass), "index %d", idx)
	}
}

func TestClassManager_Table(t *testing.T) {
	mgr := DefaultClassManager()

	tests := []struct {
		family model.Family
		len    int
		first  string
	}{
		{model.ModelFamilyYOLO, 80, "person"},
		{model.ModelFamilyCOCO, 81, "__background__"},
		{model.ModelFamilyVOC, 21, "__background__"},
	}
	for _, tt := range tests {
		t.Run(string(tt.family), func(t *testing.T) {
			set, err := mgr.Table(tt.family)
			require.NoError(t, err)
			assert.Equal(t, tt.len, set.Len())

			name, err := set.Name(0)
			require.NoError(t, err)
			assert.Equal(t, tt.first, name)
		})
	}

	_, err := mgr.Table("imagenet")
	assert.True(t, errors.Is(err, ErrUnsupportedLabels))
}

func TestAllClassSets_ReturnsCopies(t *testing.T) {
	sets := AllClassSets()
	sets[1].Classes[0].Name = "changed"

	name, err := YOLOClasses.Name(0)
	require.NoError(t, err)
	assert.Equal(t, "person", name)
}

func TestNewModel(t *testing.T) {
	m, err := NewModel(model.Config{
		ConfidenceThreshold: 0.4,
		NMS:                 postprocess.DefaultNMSConfig(),
	})
	require.NoError(t, err)
	assert.Equal(t, model.ModelNameYOLOv5, m.Config().Name)

	labels, err := LabelsFor(m)
	require.NoError(t, err)
	assert.Equal(t, 80, labels.Len())

	m, err = NewModel(model.Config{
		Family:              model.ModelFamilyVOC,
		Classes:             21,
		ConfidenceThreshold: 0.4,
		NMS:                 postprocess.DefaultNMSConfig(),
	})
	require.NoError(t, err)
	labels, err = LabelsFor(m)
	require.NoError(t, err)
	name, err := labels.Name(7)
	require.NoError(t, err)
	assert.Equal(t, "car", name)

	_, err = NewModel(model.Config{Name: "rfdetr"})
	assert.True(t, errors.Is(err, ErrUnsupportedModel))
}
