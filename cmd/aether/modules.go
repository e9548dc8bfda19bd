package main

// Compiled-in modules.
import (
	_ "github.com/flemzord/aether/internal/gateway"
	_ "github.com/flemzord/aether/modules/provider/anthropic"
	_ "github.com/flemzord/aether/modules/provider/openai_compatible"
	_ "github.com/flemzord/aether/modules/store/json"
	_ "github.com/flemzord/aether/modules/store/sqlite"
)
