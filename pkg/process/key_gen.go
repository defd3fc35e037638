package process

import (
	"hash/adler32"
	"os"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	globalIdGenerator     *snowflake.Node
	globalIdGeneratorOnce sync.Once
)

func (engine *Engine) generateKey() int64 {
	return engine.snowflake.Generate().Int64()
}

// getGlobalSnowflakeIdGenerator the global ID generator
// constraints: see also CreateSnowflakeIdGenerator
func getGlobalSnowflakeIdGenerator() *snowflake.Node {
	globalIdGeneratorOnce.Do(func() {
		globalIdGenerator = CreateSnowflakeIdGenerator()
	})
	return globalIdGenerator
}

// CreateSnowflakeIdGenerator a new ID generator, the node id is derived from the environment.
// constraints: two processes with the same environment get the same node id
func CreateSnowflakeIdGenerator() *snowflake.Node {
	hash32 := adler32.New()
	for _, e := range os.Environ() {
		_, _ = hash32.Write([]byte(e))
	}
	nodeId := int64(hash32.Sum32()) % (1 << snowflake.NodeBits)
	snowflakeNode, err := snowflake.NewNode(nodeId)
	if err != nil {
		panic("can't initialize snowflake ID generator. Message: " + err.Error())
	}
	return snowflakeNode
}
