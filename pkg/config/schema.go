package config

import (
	"fmt"
	"regexp"
)

// Update policy names referenced by parameter and section declarations. The
// policy records themselves live in the update package; the schema only
// carries the reference.
const (
	PolicyIgnored               = "IGNORED"
	PolicySupported             = "SUPPORTED"
	PolicyQueueUpdateStrategy   = "QUEUE_UPDATE_STRATEGY"
	PolicyMaxCountShrink        = "MAX_COUNT_SHRINK"
	PolicyComputeFleetStop      = "COMPUTE_FLEET_STOP"
	PolicyManagedPlacementGroup = "MANAGED_PLACEMENT_GROUP"
	PolicyHeadNodeStop          = "HEAD_NODE_STOP"
	PolicyReadOnly              = "READ_ONLY"
	PolicyUnsupported           = "UNSUPPORTED"
)

// Schema is an explicitly constructed, immutable registry of section kinds.
// There is no package-level mutable schema state; callers build a Schema once
// and pass it to the Root factories.
type Schema struct {
	rootKey  string
	sections map[string]*SectionSpec
	frozen   bool
}

// NewSchema creates an empty schema whose root section kind is rootKey
func NewSchema(rootKey string) *Schema {
	return &Schema{
		rootKey:  rootKey,
		sections: make(map[string]*SectionSpec),
	}
}

// RootKey returns the root section kind
func (sch *Schema) RootKey() string { return sch.rootKey }

// Section returns the declaration for a section kind, or nil
func (sch *Schema) Section(key string) *SectionSpec { return sch.sections[key] }

// SectionKeys returns all registered section kinds
func (sch *Schema) SectionKeys() []string {
	keys := make([]string, 0, len(sch.sections))
	for k := range sch.sections {
		keys = append(keys, k)
	}
	return keys
}

// Freeze marks the schema immutable; further Register calls fail
func (sch *Schema) Freeze() { sch.frozen = true }

// Register adds a section kind. Child kinds must be registered before the
// parents whose settings parameters reference them. Default-function cycles
// and malformed patterns are rejected here, not at population time.
func (sch *Schema) Register(spec *SectionSpec) error {
	if sch.frozen {
		return fmt.Errorf("schema is frozen")
	}
	if spec.Key == "" {
		return fmt.Errorf("section key must not be empty")
	}
	if _, exists := sch.sections[spec.Key]; exists {
		return fmt.Errorf("section %q already registered", spec.Key)
	}

	seen := make(map[string]int, len(spec.Params))
	for i, ps := range spec.Params {
		if ps.Key == "" {
			return fmt.Errorf("section %q: parameter key must not be empty", spec.Key)
		}
		if _, dup := seen[ps.Key]; dup {
			return fmt.Errorf("section %q: duplicate parameter %q", spec.Key, ps.Key)
		}
		seen[ps.Key] = i

		if ps.Default.IsSet() && ps.DefaultFn != nil {
			return fmt.Errorf("section %q: parameter %q declares both a literal and a computed default", spec.Key, ps.Key)
		}
		if ps.DefaultFn != nil {
			if len(ps.DefaultFnReads) == 0 {
				return fmt.Errorf("section %q: parameter %q: computed default must declare the parameters it reads", spec.Key, ps.Key)
			}
			for _, read := range ps.DefaultFnReads {
				if read == ps.Key {
					return fmt.Errorf("section %q: parameter %q: computed default must not read itself", spec.Key, ps.Key)
				}
				pos, declared := seen[read]
				if !declared || pos >= i {
					return fmt.Errorf("section %q: parameter %q: computed default reads %q, which is not declared before it", spec.Key, ps.Key, read)
				}
			}
		}

		if ps.Pattern != "" {
			re, err := regexp.Compile(ps.Pattern)
			if err != nil {
				return fmt.Errorf("section %q: parameter %q: invalid pattern: %w", spec.Key, ps.Key, err)
			}
			ps.pattern = re
		}
		if ps.ElemPattern != "" {
			re, err := regexp.Compile(ps.ElemPattern)
			if err != nil {
				return fmt.Errorf("section %q: parameter %q: invalid element pattern: %w", spec.Key, ps.Key, err)
			}
			ps.elemPattern = re
		}

		if ps.SettingsFor != "" {
			if ps.Kind != KindStringList {
				return fmt.Errorf("section %q: settings parameter %q must be a string list", spec.Key, ps.Key)
			}
			if sch.sections[ps.SettingsFor] == nil {
				return fmt.Errorf("section %q: settings parameter %q references unregistered section %q", spec.Key, ps.Key, ps.SettingsFor)
			}
		}

		if spec.CombinedStorage && ps.SettingsFor == "" {
			if ps.Kind == KindStringList || ps.Kind == KindBlob {
				return fmt.Errorf("section %q: combined storage cannot hold %s parameter %q", spec.Key, ps.Kind, ps.Key)
			}
		}
	}

	sch.sections[spec.Key] = spec
	return nil
}

func (sch *Schema) mustRegister(spec *SectionSpec) {
	if err := sch.Register(spec); err != nil {
		panic(err)
	}
}

// ClusterSchema builds the full cluster configuration schema. Children are
// registered before the parents that reference them; the returned schema is
// frozen.
func ClusterSchema() *Schema {
	sch := NewSchema("cluster")

	sch.mustRegister(&SectionSpec{
		Key:          "head_node",
		MaxInstances: 1,
		Params: []*ParamSpec{
			{Key: "InstanceType", Kind: KindString, Required: true, Policy: PolicyHeadNodeStop},
			{Key: "SubnetId", Kind: KindString, Required: true, Pattern: `^subnet-[0-9a-f]+$`, Policy: PolicyReadOnly},
			{Key: "KeyName", Kind: KindString, Policy: PolicyUnsupported},
			{Key: "RootVolumeSize", Kind: KindInt, Default: IntValue(40), Policy: PolicySupported},
			{Key: "ElasticIp", Kind: KindBool, Default: BoolValue(false), Policy: PolicyUnsupported},
		},
	})

	sch.mustRegister(&SectionSpec{
		Key:          "compute_resource",
		MaxInstances: 5,
		Policy:       PolicyComputeFleetStop,
		Params: []*ParamSpec{
			{Key: "InstanceType", Kind: KindString, Required: true, Policy: PolicyQueueUpdateStrategy},
			{Key: "MinCount", Kind: KindInt, Default: IntValue(0), Policy: PolicyComputeFleetStop},
			{Key: "MaxCount", Kind: KindInt, Default: IntValue(10), Policy: PolicyMaxCountShrink},
			{Key: "SpotPrice", Kind: KindFloat, Policy: PolicySupported},
			{Key: "DisableSimultaneousMultithreading", Kind: KindBool, Default: BoolValue(false), Policy: PolicyQueueUpdateStrategy},
		},
	})

	sch.mustRegister(&SectionSpec{
		Key:          "queue",
		MaxInstances: 10,
		Policy:       PolicyQueueUpdateStrategy,
		Params: []*ParamSpec{
			{Key: "CapacityType", Kind: KindString, Default: StringValue("ONDEMAND"), Allowed: []string{"ONDEMAND", "SPOT"}, Policy: PolicyQueueUpdateStrategy},
			{Key: "SubnetIds", Kind: KindStringList, ElemPattern: `^subnet-[0-9a-f]+$`, Policy: PolicyQueueUpdateStrategy},
			{Key: "PlacementGroupEnabled", Kind: KindBool, Default: BoolValue(false), Policy: PolicyManagedPlacementGroup},
			{Key: "ComputeResources", Kind: KindStringList, SettingsFor: "compute_resource", Policy: PolicyIgnored},
		},
	})

	sch.mustRegister(&SectionSpec{
		Key:          "scheduling",
		MaxInstances: 1,
		Params: []*ParamSpec{
			{Key: "Scheduler", Kind: KindString, Required: true, Allowed: []string{"slurm", "batch", "plugin"}, Policy: PolicyUnsupported},
			{Key: "QueueUpdateStrategy", Kind: KindString, Default: StringValue("COMPUTE_FLEET_STOP"), Allowed: []string{"COMPUTE_FLEET_STOP", "DRAIN", "TERMINATE"}, Policy: PolicyIgnored},
			{Key: "ScaledownIdleTime", Kind: KindInt, Default: IntValue(10), Policy: PolicyComputeFleetStop},
			{Key: "SlurmQueues", Kind: KindStringList, SettingsFor: "queue", Policy: PolicyIgnored},
		},
	})

	sch.mustRegister(&SectionSpec{
		Key:             "storage",
		MaxInstances:    5,
		Policy:          PolicyUnsupported,
		CombinedStorage: true,
		Params: []*ParamSpec{
			{Key: "MountDir", Kind: KindString, Required: true, Policy: PolicyReadOnly},
			{Key: "StorageType", Kind: KindString, Default: StringValue("Ebs"), Allowed: []string{"Ebs", "Efs", "FsxLustre"}, Policy: PolicyUnsupported},
			{
				Key:            "Size",
				Kind:           KindInt,
				DefaultFn:      defaultStorageSize,
				DefaultFnReads: []string{"StorageType"},
				Policy:         PolicySupported,
			},
			{Key: "DeletionPolicy", Kind: KindString, Default: StringValue("Delete"), Allowed: []string{"Delete", "Retain"}, Policy: PolicySupported},
		},
	})

	sch.mustRegister(&SectionSpec{
		Key:          "monitoring",
		MaxInstances: 1,
		Autocreate:   true,
		Params: []*ParamSpec{
			{Key: "DetailedMonitoring", Kind: KindBool, Default: BoolValue(false), Policy: PolicyComputeFleetStop},
			{Key: "LogRetentionDays", Kind: KindInt, Default: IntValue(14), Allowed: []string{"1", "3", "5", "7", "14", "30", "60", "90", "180", "365"}, Policy: PolicySupported},
			{Key: "DashboardEnabled", Kind: KindBool, Default: BoolValue(true), Policy: PolicySupported},
		},
	})

	sch.mustRegister(&SectionSpec{
		Key:          "network",
		MaxInstances: 1,
		Autocreate:   true,
		Params: []*ParamSpec{
			{Key: "UsePublicIps", Kind: KindBool, Default: BoolValue(true), Policy: PolicyQueueUpdateStrategy},
			{Key: "AdditionalSecurityGroups", Kind: KindStringList, ElemPattern: `^sg-[0-9a-f]+$`, Policy: PolicySupported},
			{Key: "ProxyAddress", Kind: KindString, Policy: PolicySupported},
		},
	})

	sch.mustRegister(&SectionSpec{
		Key:          "cluster",
		MaxInstances: 1,
		Autocreate:   true,
		Params: []*ParamSpec{
			{Key: "Os", Kind: KindString, Default: StringValue("alinux2"), Allowed: []string{"alinux2", "alinux2023", "ubuntu2004", "ubuntu2204", "rhel8"}, Policy: PolicyComputeFleetStop},
			{Key: "CustomAmi", Kind: KindString, Pattern: `^ami-[0-9a-f]+$`, Policy: PolicyComputeFleetStop},
			{Key: "ResourceBucket", Kind: KindString, Policy: PolicyReadOnly},
			{Key: "HeadNode", Kind: KindStringList, SettingsFor: "head_node", Policy: PolicyIgnored},
			{Key: "Scheduling", Kind: KindStringList, SettingsFor: "scheduling", Policy: PolicyIgnored},
			{Key: "SharedStorage", Kind: KindStringList, SettingsFor: "storage", Policy: PolicyIgnored},
			{Key: "Monitoring", Kind: KindStringList, SettingsFor: "monitoring", Policy: PolicyIgnored},
			{Key: "Networking", Kind: KindStringList, SettingsFor: "network", Policy: PolicyIgnored},
			{Key: "ConfigVersion", Kind: KindString, Visibility: Private, StorageKey: "ConfigVersion", Policy: PolicyIgnored},
			{Key: "ArtifactPrefix", Kind: KindString, Visibility: Private, StorageKey: "ArtifactPrefix", Policy: PolicyIgnored},
		},
	})

	sch.Freeze()
	return sch
}

// defaultStorageSize derives the storage size from the already resolved
// StorageType sibling.
func defaultStorageSize(s *Section) Value {
	switch s.Value("StorageType").String() {
	case "FsxLustre":
		return IntValue(1200)
	case "Efs":
		// EFS is elastic, size is not provisioned
		return IntValue(0)
	default:
		return IntValue(35)
	}
}
