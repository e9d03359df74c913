package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDocument = `
Os: alinux2
HeadNode:
  InstanceType: c5.xlarge
  SubnetId: subnet-0abc123
Scheduling:
  Scheduler: slurm
  SlurmQueues:
    - Name: q1
      CapacityType: ONDEMAND
      ComputeResources:
        - Name: cr1
          InstanceType: c5.large
          MinCount: 1
          MaxCount: 8
    - Name: q2
      CapacityType: SPOT
      ComputeResources:
        - Name: cr1
          InstanceType: c5.2xlarge
SharedStorage:
  - Name: shared
    MountDir: /shared
    StorageType: Efs
`

// TestFromDocument tests building the full section tree from YAML
func TestFromDocument(t *testing.T) {
	sch := ClusterSchema()
	root, err := FromDocument(sch, []byte(sampleDocument))
	require.NoError(t, err)

	cluster := root.RootSection()
	require.NotNil(t, cluster)
	assert.Equal(t, "alinux2", cluster.Value("Os").String())

	head := root.DefaultSection("head_node")
	require.NotNil(t, head)
	assert.Equal(t, "c5.xlarge", head.Value("InstanceType").String())
	assert.Equal(t, 40, head.Value("RootVolumeSize").Int(), "omitted parameter takes its default")

	sched := root.DefaultSection("scheduling")
	require.NotNil(t, sched)
	assert.Equal(t, []string{"q1", "q2"}, sched.Value("SlurmQueues").List())

	queues := root.ChildrenOf(sched, "SlurmQueues")
	require.Len(t, queues, 2)
	assert.Equal(t, "q1", queues[0].Label())

	crs := root.ChildrenOf(queues[0], "ComputeResources")
	require.Len(t, crs, 1)
	assert.Equal(t, 8, crs[0].Value("MaxCount").Int())

	// the same compute-resource label under a different queue is distinct
	crs2 := root.ChildrenOf(queues[1], "ComputeResources")
	require.Len(t, crs2, 1)
	assert.Equal(t, "c5.2xlarge", crs2[0].Value("InstanceType").String())

	storage := root.Section("storage", "shared")
	require.NotNil(t, storage)
	assert.Equal(t, 0, storage.Value("Size").Int(), "EFS size default")
}

// TestFromDocumentAutocreate tests that monitoring and network sections are
// instantiated with defaults when absent from the document
func TestFromDocumentAutocreate(t *testing.T) {
	root, err := FromDocument(ClusterSchema(), []byte(sampleDocument))
	require.NoError(t, err)

	mon := root.DefaultSection("monitoring")
	require.NotNil(t, mon)
	assert.Equal(t, DefaultLabel, mon.Label())
	assert.Equal(t, 14, mon.Value("LogRetentionDays").Int())

	net := root.DefaultSection("network")
	require.NotNil(t, net)
	assert.True(t, net.Value("UsePublicIps").Bool())

	cluster := root.RootSection()
	assert.Equal(t, []string{DefaultLabel}, cluster.Value("Monitoring").List())
}

// TestFromDocumentErrors tests structural rejection cases
func TestFromDocumentErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "unknown field",
			doc: `
HeadNode:
  InstanceType: c5.xlarge
  SubnetId: subnet-0abc123
  FavouriteColor: blue
`,
		},
		{
			name: "private field in user input",
			doc:  `ConfigVersion: sneaky`,
		},
		{
			name: "missing queue name",
			doc: `
Scheduling:
  Scheduler: slurm
  SlurmQueues:
    - CapacityType: ONDEMAND
`,
		},
		{
			name: "duplicate queue labels",
			doc: `
Scheduling:
  Scheduler: slurm
  SlurmQueues:
    - Name: q1
    - Name: q1
`,
		},
		{
			name: "disallowed scheduler value",
			doc: `
Scheduling:
  Scheduler: sge
`,
		},
		{
			name: "single-instance section given a list",
			doc: `
HeadNode:
  - InstanceType: c5.xlarge
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromDocument(ClusterSchema(), []byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

// TestFromDocumentTooManySections tests the per-parent instance cap
func TestFromDocumentTooManySections(t *testing.T) {
	doc := "Scheduling:\n  Scheduler: slurm\n  SlurmQueues:\n"
	for i := 0; i < 11; i++ {
		doc += "    - Name: q" + string(rune('a'+i)) + "\n"
	}
	_, err := FromDocument(ClusterSchema(), []byte(doc))
	var tme *TooManySectionsError
	require.ErrorAs(t, err, &tme)
	assert.Equal(t, "queue", tme.Section)
	assert.Equal(t, 10, tme.Max)
}

// TestDocumentRoundTrip tests that ToDocument output rebuilds an equivalent tree
func TestDocumentRoundTrip(t *testing.T) {
	sch := ClusterSchema()
	first, err := FromDocument(sch, []byte(sampleDocument))
	require.NoError(t, err)

	out, err := first.ToDocument()
	require.NoError(t, err)

	second, err := FromDocument(sch, out)
	require.NoError(t, err)

	assert.Equal(t, first.ToFlat(), second.ToFlat())
}

// TestFlatRoundTrip tests the flat storage representation against FromStorage
func TestFlatRoundTrip(t *testing.T) {
	sch := ClusterSchema()
	first, err := FromDocument(sch, []byte(sampleDocument))
	require.NoError(t, err)
	require.NoError(t, first.RootSection().SetValue("ConfigVersion", "v-123"))

	flat := first.ToFlat()
	assert.Equal(t, "q1,q2", flat["Scheduling[default].SlurmQueues"])
	assert.Contains(t, flat, "SharedStorage[shared]", "combined storage section flattens to one entry")
	assert.Equal(t, "v-123", flat["ConfigVersion"], "private params persist to flat storage")

	second, err := FromStorage(sch, flat, nil)
	require.NoError(t, err)
	assert.Equal(t, flat, second.ToFlat())
	assert.Equal(t, "v-123", second.Version, "version recovered from private entry")
}

// TestFromStorageWithBlob tests that the resolved-document blob takes
// precedence for public fields while private fields come from flat entries
func TestFromStorageWithBlob(t *testing.T) {
	sch := ClusterSchema()
	first, err := FromDocument(sch, []byte(sampleDocument))
	require.NoError(t, err)

	blob, err := first.ResolvedJSON()
	require.NoError(t, err)

	flat := map[string]string{"ConfigVersion": "v-9", "ArtifactPrefix": "clusters/demo/versions/v-9"}
	second, err := FromStorage(sch, flat, blob)
	require.NoError(t, err)

	assert.Equal(t, "v-9", second.Version)
	assert.Equal(t, "clusters/demo/versions/v-9", second.RootSection().Value("ArtifactPrefix").String())
	head := second.DefaultSection("head_node")
	require.NotNil(t, head)
	assert.Equal(t, "c5.xlarge", head.Value("InstanceType").String())
}

// TestSnapshot tests deep-copy isolation and private-field carry-over
func TestSnapshot(t *testing.T) {
	sch := ClusterSchema()
	root, err := FromDocument(sch, []byte(sampleDocument))
	require.NoError(t, err)
	require.NoError(t, root.RootSection().SetValue("ConfigVersion", "v-1"))
	root.Version = "v-1"

	snap, err := root.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "v-1", snap.Version)
	assert.Equal(t, "v-1", snap.RootSection().Value("ConfigVersion").String())

	// mutating the snapshot must not touch the original
	head := snap.DefaultSection("head_node")
	require.NoError(t, head.SetValue("InstanceType", "m5.large"))
	assert.Equal(t, "c5.xlarge", root.DefaultSection("head_node").Value("InstanceType").String())
}

// TestAttachDetachSection tests programmatic tree mutation
func TestAttachDetachSection(t *testing.T) {
	sch := ClusterSchema()
	root, err := FromDocument(sch, []byte(sampleDocument))
	require.NoError(t, err)

	sched := root.DefaultSection("scheduling")
	q3 := newSection(sch.Section("queue"), "q3")
	require.NoError(t, q3.populate(map[string]interface{}{}))

	require.NoError(t, root.AttachSection(sched, "SlurmQueues", q3))
	assert.Equal(t, []string{"q1", "q2", "q3"}, sched.Value("SlurmQueues").List())

	// duplicate label under the same parent is rejected
	dup := newSection(sch.Section("queue"), "q3")
	err = root.AttachSection(sched, "SlurmQueues", dup)
	var le *LabelError
	require.ErrorAs(t, err, &le)

	require.NoError(t, root.DetachSection(sched, "SlurmQueues", "q3"))
	assert.Equal(t, []string{"q1", "q2"}, sched.Value("SlurmQueues").List())
	assert.Error(t, root.DetachSection(sched, "SlurmQueues", "q3"), "already detached")
}
