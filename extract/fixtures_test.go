package extract

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ridge/alluvium/chain"
)

var (
	ownerAddr   = "0x" + strings.Repeat("0", 62) + "a1"
	creatorAddr = "0x" + strings.Repeat("0", 62) + "b2"
)

var testEpoch = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func testTime(version uint64) time.Time {
	return testEpoch.Add(time.Duration(version) * time.Second)
}

func testTxn(version uint64, changes ...chain.Change) *chain.Transaction {
	return &chain.Transaction{
		Version:     version,
		Timestamp:   testTime(version),
		Type:        chain.TypeUser,
		Hash:        fmt.Sprintf("0x%064x", version),
		Success:     true,
		BlockHeight: version / 2,
		Sender:      ownerAddr,
		Changes:     changes,
	}
}

func writeResource(address, resourceType, data string) chain.Change {
	return chain.Change{
		Kind:    chain.WriteResource,
		Address: address,
		Type:    resourceType,
		Data:    json.RawMessage(data),
	}
}

func deleteResource(address, resourceType string) chain.Change {
	return chain.Change{
		Kind:    chain.DeleteResource,
		Address: address,
		Type:    resourceType,
	}
}
