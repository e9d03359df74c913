package config

import (
	"errors"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestValidateLabel tests the section label grammar
func TestValidateLabel(t *testing.T) {
	tests := []struct {
		name    string
		label   string
		wantErr bool
	}{
		{name: "simple", label: "queue1", wantErr: false},
		{name: "default label", label: DefaultLabel, wantErr: false},
		{name: "hyphens and underscores", label: "gpu-queue_2", wantErr: false},
		{name: "single letter", label: "q", wantErr: false},
		{name: "thirty characters", label: "a123456789012345678901234567890"[:30], wantErr: false},
		{name: "empty", label: "", wantErr: true},
		{name: "leading digit", label: "1queue", wantErr: true},
		{name: "leading hyphen", label: "-queue", wantErr: true},
		{name: "dot", label: "queue.a", wantErr: true},
		{name: "space", label: "queue a", wantErr: true},
		{name: "over thirty characters", label: "a123456789012345678901234567890", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLabel("queue", tt.label)
			if tt.wantErr {
				var le *LabelError
				require.ErrorAs(t, err, &le)
				assert.Equal(t, "InvalidLabel", le.Kind())
				return
			}
			assert.NoError(t, err)
		})
	}
}

func testSectionSpec() *SectionSpec {
	return &SectionSpec{
		Key:          "compute_resource",
		MaxInstances: 5,
		Params: []*ParamSpec{
			{Key: "InstanceType", Kind: KindString, Required: true},
			{Key: "MinCount", Kind: KindInt, Default: IntValue(0)},
			{Key: "MaxCount", Kind: KindInt, Default: IntValue(10)},
			{Key: "Secret", Kind: KindString, Visibility: Private},
		},
	}
}

// TestSectionPopulate tests fragment loading with default resolution
func TestSectionPopulate(t *testing.T) {
	s := newSection(testSectionSpec(), "cr1")
	err := s.populate(map[string]interface{}{
		"InstanceType": "c5.xlarge",
		"MaxCount":     20,
	})
	require.NoError(t, err)

	assert.Equal(t, "c5.xlarge", s.Value("InstanceType").String())
	assert.Equal(t, 20, s.Value("MaxCount").Int())
	assert.False(t, s.Param("MaxCount").FromDefault())

	// omitted parameter takes its literal default
	assert.Equal(t, 0, s.Value("MinCount").Int())
	assert.True(t, s.Param("MinCount").FromDefault())
}

// TestSectionPopulateErrors tests that population aggregates every error
// instead of stopping at the first
func TestSectionPopulateErrors(t *testing.T) {
	s := newSection(testSectionSpec(), "cr1")
	err := s.populate(map[string]interface{}{
		"Typo":     "x",
		"Secret":   "forbidden",
		"MaxCount": "many",
	})
	require.Error(t, err)

	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 3)

	kinds := make(map[string]bool)
	for _, e := range merr.Errors {
		var k interface{ Kind() string }
		if errors.As(e, &k) {
			kinds[k.Kind()] = true
		}
	}
	assert.True(t, kinds["UnknownField"])
	assert.True(t, kinds["DisallowedField"])
	assert.True(t, kinds["InvalidValue"])
}

// TestParamConstraints tests allowed-set, pattern, and element-pattern checks
func TestParamConstraints(t *testing.T) {
	sch := NewSchema("root")
	err := sch.Register(&SectionSpec{
		Key: "root",
		Params: []*ParamSpec{
			{Key: "Scheduler", Kind: KindString, Allowed: []string{"slurm", "batch"}},
			{Key: "SubnetId", Kind: KindString, Pattern: `^subnet-[0-9a-f]+$`},
			{Key: "SubnetIds", Kind: KindStringList, ElemPattern: `^subnet-[0-9a-f]+$`},
		},
	})
	require.NoError(t, err)
	spec := sch.Section("root")

	tests := []struct {
		name    string
		key     string
		raw     interface{}
		wantErr bool
	}{
		{name: "allowed value", key: "Scheduler", raw: "slurm", wantErr: false},
		{name: "disallowed value", key: "Scheduler", raw: "sge", wantErr: true},
		{name: "pattern match", key: "SubnetId", raw: "subnet-0abc123", wantErr: false},
		{name: "pattern mismatch", key: "SubnetId", raw: "vpc-0abc123", wantErr: true},
		{name: "element pattern match", key: "SubnetIds", raw: []interface{}{"subnet-1a", "subnet-2b"}, wantErr: false},
		{name: "element pattern mismatch", key: "SubnetIds", raw: []interface{}{"subnet-1a", "bogus"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSection(spec, DefaultLabel)
			err := s.Param(tt.key).Load(tt.raw)
			if tt.wantErr {
				var ive *InvalidValueError
				require.ErrorAs(t, err, &ive)
				assert.Equal(t, tt.key, ive.Param)
				return
			}
			assert.NoError(t, err)
		})
	}
}

// TestCombinedStorageRoundTrip tests that the ordered blob reconstructs the
// same per-parameter values
func TestCombinedStorageRoundTrip(t *testing.T) {
	spec := &SectionSpec{
		Key:             "storage",
		MaxInstances:    5,
		CombinedStorage: true,
		Params: []*ParamSpec{
			{Key: "MountDir", Kind: KindString, Required: true},
			{Key: "StorageType", Kind: KindString, Default: StringValue("Ebs")},
			{Key: "Size", Kind: KindInt, Default: IntValue(35)},
		},
	}

	s := newSection(spec, "shared")
	require.NoError(t, s.populate(map[string]interface{}{
		"MountDir": "/shared",
		"Size":     100,
	}))

	blob := s.combinedStorage()
	assert.Equal(t, "/shared,Ebs,100", blob)

	fresh := newSection(spec, "shared")
	fields, err := fresh.splitCombinedStorage(blob)
	require.NoError(t, err)
	require.NoError(t, fresh.populateStorage(fields))

	assert.Equal(t, "/shared", fresh.Value("MountDir").String())
	assert.Equal(t, "Ebs", fresh.Value("StorageType").String())
	assert.Equal(t, 100, fresh.Value("Size").Int())
}

// TestSplitCombinedStorageFieldCount tests blob shape enforcement
func TestSplitCombinedStorageFieldCount(t *testing.T) {
	spec := &SectionSpec{
		Key:             "storage",
		CombinedStorage: true,
		Params: []*ParamSpec{
			{Key: "MountDir", Kind: KindString},
			{Key: "Size", Kind: KindInt},
		},
	}
	s := newSection(spec, DefaultLabel)

	_, err := s.splitCombinedStorage("/shared")
	assert.Error(t, err, "too few fields")

	_, err = s.splitCombinedStorage("/shared,35,extra")
	assert.Error(t, err, "too many fields")
}

// TestStorageKeyOverride tests that StorageKey replaces Key in flat entries
func TestStorageKeyOverride(t *testing.T) {
	ps := &ParamSpec{Key: "ConfigVersion", Kind: KindString, StorageKey: "Version"}
	p := &Param{spec: ps, value: StringValue("v1")}

	key, value := p.Storage()
	assert.Equal(t, "Version", key)
	assert.Equal(t, "v1", value)
}
