package user

import (
	"fmt"
	"time"

	"github.com/Anvoria/identra/internal/credentials"
)

var adjectives = []string{
	"amber", "bold", "brisk", "calm", "clever", "cosmic", "crimson", "daring",
	"dusty", "eager", "fading", "gentle", "golden", "hidden", "humble", "ivory",
	"jolly", "keen", "lively", "lunar", "mellow", "misty", "noble", "polar",
	"quiet", "rapid", "rustic", "silent", "silver", "solar", "steady", "swift",
	"tidal", "velvet", "vivid", "wandering", "wild", "witty", "young", "zesty",
}

var nouns = []string{
	"aurora", "badger", "beacon", "canyon", "cedar", "comet", "coral", "crane",
	"delta", "ember", "falcon", "fjord", "glacier", "harbor", "heron", "ibis",
	"jaguar", "kestrel", "lagoon", "lantern", "maple", "meadow", "nebula",
	"orchid", "osprey", "otter", "pebble", "pine", "quartz", "raven", "reef",
	"ridge", "sparrow", "summit", "thicket", "tundra", "walnut", "willow",
	"wren", "zephyr",
}

const digits = "0123456789"

// randomUsername draws a candidate of the form {adjective}-{noun}-{3 digits}.
func randomUsername() (string, error) {
	adj, err := credentials.RandomIndex(len(adjectives))
	if err != nil {
		return "", err
	}
	noun, err := credentials.RandomIndex(len(nouns))
	if err != nil {
		return "", err
	}
	suffix, err := credentials.RandomString(digits, 3)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s-%s-%s", adjectives[adj], nouns[noun], suffix), nil
}

// fallbackUsername builds a guaranteed-unique username once the friendly
// generator has exhausted its collision retries.
func fallbackUsername() (string, error) {
	suffix, err := credentials.RandomString(digits, 6)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("user-%d-%s", time.Now().Unix(), suffix), nil
}
