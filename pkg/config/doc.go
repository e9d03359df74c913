/*
Package config implements the typed, versioned cluster configuration model.

A configuration is a tree of labeled Sections, each owning typed Parameters,
built against an explicitly constructed Schema:

	┌──────────────────── CONFIGURATION ROOT ───────────────────┐
	│                                                            │
	│  cluster[default]                                          │
	│   ├─ HeadNode      ──▶ head_node[default]                  │
	│   ├─ Scheduling    ──▶ scheduling[default]                 │
	│   │                     └─ SlurmQueues ──▶ queue[q1] …     │
	│   │                           └─ ComputeResources ──▶ …    │
	│   ├─ SharedStorage ──▶ storage[scratch] …                  │
	│   ├─ Monitoring    ──▶ monitoring[default]  (autocreated)  │
	│   └─ Networking    ──▶ network[default]     (autocreated)  │
	└────────────────────────────────────────────────────────────┘

Parameters are tagged-variant Values (string, int, float, bool, string-list,
structured blob) with allowed-value and pattern constraints, literal or
computed defaults, and PUBLIC/PRIVATE visibility. Defaults computed from
sibling parameters are cycle-checked when the Schema is registered, not at
population time.

A Root round-trips between three representations: the declarative YAML
document, the resolved JSON document (all defaults expanded), and the flat
storage form mirrored onto stack parameters, where combined-storage sections
serialize as a single ordered blob.
*/
package config
