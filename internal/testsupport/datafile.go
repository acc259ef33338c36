package testsupport

// DatafileJSON is a complete version 4 datafile shared by package tests.
//
// Bucketing values used by tests (MurmurHash3, seed 1, scaled to [0, 10000)):
//
//	"ppid1" + "1886780721" -> 5254 (checkout_flow: treatment)
//	"ppid2" + "1886780721" -> 4299 (checkout_flow: control)
//	"ppid3" + "1886780721" -> 5439 (checkout_flow: treatment)
//	"ppid2" + "1886780722" -> 2434 (group 1886780722: group_exp_a)
const DatafileJSON = `{
  "version": "4",
  "revision": "42",
  "accountId": "12001",
  "projectId": "111001",
  "anonymizeIP": true,
  "botFiltering": false,
  "sendFlagDecisions": true,
  "sdkKey": "sdk-key-test",
  "environmentKey": "production",
  "attributes": [
    {"id": "10401", "key": "browser"},
    {"id": "10402", "key": "age"}
  ],
  "audiences": [
    {
      "id": "20301",
      "name": "chrome users",
      "conditions": "[\"and\", [\"or\", [\"or\", {\"name\": \"browser\", \"type\": \"custom_attribute\", \"value\": \"chrome\"}]]]"
    },
    {
      "id": "20302",
      "name": "adults (legacy placeholder)",
      "conditions": "[\"or\", {\"match\": \"exact\", \"name\": \"$opt_dummy_attribute\", \"type\": \"custom_attribute\", \"value\": \"$opt_dummy_value\"}]"
    },
    {
      "id": "20303",
      "name": "broken",
      "conditions": "[\"and\", "
    }
  ],
  "typedAudiences": [
    {
      "id": "20302",
      "name": "adults",
      "conditions": ["and", ["or", ["or", {"name": "age", "type": "custom_attribute", "match": "ge", "value": 18}]]]
    }
  ],
  "experiments": [
    {
      "id": "1886780721",
      "key": "checkout_flow",
      "status": "Running",
      "layerId": "1886780700",
      "audienceIds": [],
      "trafficAllocation": [
        {"entityId": "1886780730", "endOfRange": 5000},
        {"entityId": "1886780731", "endOfRange": 10000}
      ],
      "variations": [
        {"id": "1886780730", "key": "control"},
        {"id": "1886780731", "key": "treatment"}
      ],
      "forcedVariations": {"qa-user": "treatment"}
    },
    {
      "id": "1886780740",
      "key": "paused_exp",
      "status": "Paused",
      "layerId": "1886780701",
      "audienceIds": [],
      "trafficAllocation": [{"entityId": "1886780741", "endOfRange": 10000}],
      "variations": [{"id": "1886780741", "key": "only"}],
      "forcedVariations": {"qa-user": "only"}
    },
    {
      "id": "1886780750",
      "key": "targeted_exp",
      "status": "Running",
      "layerId": "1886780702",
      "audienceIds": ["20301", "20302"],
      "trafficAllocation": [{"entityId": "1886780751", "endOfRange": 10000}],
      "variations": [{"id": "1886780751", "key": "v1"}],
      "forcedVariations": {}
    },
    {
      "id": "1886780760",
      "key": "feature_exp",
      "status": "Running",
      "layerId": "1886780703",
      "audienceIds": ["20301"],
      "audienceConditions": ["or", "20302"],
      "trafficAllocation": [{"entityId": "1886780761", "endOfRange": 10000}],
      "variations": [
        {
          "id": "1886780761",
          "key": "feature_on",
          "featureEnabled": true,
          "variables": [
            {"id": "30001", "value": "42"},
            {"id": "30002", "value": "{\"theme\": \"dark\"}"}
          ]
        }
      ],
      "forcedVariations": {}
    }
  ],
  "groups": [
    {
      "id": "1886780722",
      "policy": "random",
      "trafficAllocation": [
        {"entityId": "1886780770", "endOfRange": 5000},
        {"entityId": "1886780780", "endOfRange": 10000}
      ],
      "experiments": [
        {
          "id": "1886780770",
          "key": "group_exp_a",
          "status": "Running",
          "layerId": "1886780704",
          "audienceIds": [],
          "trafficAllocation": [{"entityId": "1886780771", "endOfRange": 10000}],
          "variations": [{"id": "1886780771", "key": "a"}],
          "forcedVariations": {}
        },
        {
          "id": "1886780780",
          "key": "group_exp_b",
          "status": "Running",
          "layerId": "1886780705",
          "audienceIds": [],
          "trafficAllocation": [{"entityId": "1886780781", "endOfRange": 10000}],
          "variations": [{"id": "1886780781", "key": "b"}],
          "forcedVariations": {}
        }
      ]
    }
  ],
  "featureFlags": [
    {
      "id": "30100",
      "key": "checkout_redesign",
      "rolloutId": "40100",
      "experimentIds": ["1886780760"],
      "variables": [
        {"id": "30001", "key": "max_items", "type": "integer", "defaultValue": "10"},
        {"id": "30002", "key": "settings", "type": "string", "subType": "json", "defaultValue": "{}"},
        {"id": "30003", "key": "label", "type": "string", "defaultValue": "Checkout"},
        {"id": "30004", "key": "ratio", "type": "double", "defaultValue": "0.5"},
        {"id": "30005", "key": "beta", "type": "boolean", "defaultValue": "false"}
      ]
    },
    {
      "id": "30200",
      "key": "new_nav",
      "rolloutId": "40200",
      "experimentIds": [],
      "variables": []
    },
    {
      "id": "30300",
      "key": "no_rollout",
      "rolloutId": "",
      "experimentIds": [],
      "variables": []
    },
    {
      "id": "30400",
      "key": "partial_rollout",
      "rolloutId": "40300",
      "experimentIds": [],
      "variables": []
    },
    {
      "id": "30500",
      "key": "dark_launch",
      "rolloutId": "40400",
      "experimentIds": [],
      "variables": []
    }
  ],
  "rollouts": [
    {
      "id": "40100",
      "experiments": [
        {
          "id": "40101",
          "key": "40101",
          "status": "Running",
          "layerId": "40100",
          "audienceIds": ["20301"],
          "trafficAllocation": [{"entityId": "40111", "endOfRange": 10000}],
          "variations": [
            {"id": "40111", "key": "40111", "featureEnabled": true, "variables": [{"id": "30001", "value": "5"}]}
          ]
        },
        {
          "id": "40102",
          "key": "40102",
          "status": "Running",
          "layerId": "40100",
          "audienceIds": [],
          "trafficAllocation": [{"entityId": "40112", "endOfRange": 10000}],
          "variations": [{"id": "40112", "key": "40112", "featureEnabled": false}]
        }
      ]
    },
    {
      "id": "40200",
      "experiments": [
        {
          "id": "40201",
          "key": "40201",
          "status": "Running",
          "layerId": "40200",
          "audienceIds": ["20301"],
          "trafficAllocation": [{"entityId": "40211", "endOfRange": 10000}],
          "variations": [{"id": "40211", "key": "40211", "featureEnabled": true}]
        },
        {
          "id": "40202",
          "key": "40202",
          "status": "Running",
          "layerId": "40200",
          "audienceIds": ["20302"],
          "trafficAllocation": [{"entityId": "40212", "endOfRange": 10000}],
          "variations": [{"id": "40212", "key": "40212", "featureEnabled": true}]
        },
        {
          "id": "40203",
          "key": "40203",
          "status": "Running",
          "layerId": "40200",
          "audienceIds": [],
          "trafficAllocation": [{"entityId": "40213", "endOfRange": 10000}],
          "variations": [{"id": "40213", "key": "40213", "featureEnabled": true}]
        }
      ]
    },
    {
      "id": "40300",
      "experiments": [
        {
          "id": "40301",
          "key": "40301",
          "status": "Running",
          "layerId": "40300",
          "audienceIds": ["20301"],
          "trafficAllocation": [],
          "variations": [{"id": "40311", "key": "40311", "featureEnabled": true}]
        },
        {
          "id": "40302",
          "key": "40302",
          "status": "Running",
          "layerId": "40300",
          "audienceIds": ["20302"],
          "trafficAllocation": [{"entityId": "40312", "endOfRange": 10000}],
          "variations": [{"id": "40312", "key": "40312", "featureEnabled": true}]
        },
        {
          "id": "40303",
          "key": "40303",
          "status": "Running",
          "layerId": "40300",
          "audienceIds": [],
          "trafficAllocation": [{"entityId": "40313", "endOfRange": 10000}],
          "variations": [{"id": "40313", "key": "40313", "featureEnabled": false}]
        }
      ]
    },
    {
      "id": "40400",
      "experiments": [
        {
          "id": "40401",
          "key": "40401",
          "status": "Running",
          "layerId": "40400",
          "audienceIds": [],
          "trafficAllocation": [],
          "variations": [{"id": "40411", "key": "40411", "featureEnabled": true}]
        }
      ]
    }
  ],
  "events": [
    {"id": "50001", "key": "purchase", "experimentIds": ["1886780721"]}
  ]
}`

// Datafile returns a fresh copy of DatafileJSON.
func Datafile() []byte {
	return []byte(DatafileJSON)
}
