package lending_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

func Test_ConsistencyLevel(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, lending.StrongConsistency, lending.GetConsistencyLevel(ctx), "Should default to strong consistency")
	assert.Equal(t, lending.EventualConsistency, lending.GetConsistencyLevel(lending.WithEventualConsistency(ctx)))
	assert.Equal(t, lending.StrongConsistency, lending.GetConsistencyLevel(lending.WithStrongConsistency(lending.WithEventualConsistency(ctx))))
	assert.Equal(t, "eventual", lending.EventualConsistency.String())
}
