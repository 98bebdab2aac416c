package platform

import (
	"context"
	"fmt"
	"log"
	"net/http"
)

type commandDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

var commands = []commandDefinition{
	{
		Name:        "start-quiz",
		Description: "Take the promotion quiz (after the minimum probation period)",
	},
}

// RegisterCommands registers the service's slash commands. With a guild ID
// the registration is scoped and takes effect immediately; without one it is
// global and can take up to an hour to propagate.
func (c *Client) RegisterCommands(ctx context.Context, applicationID, guildID string) error {
	if applicationID == "" {
		log.Println("APPLICATION_ID not set, skipping slash command registration")
		return nil
	}

	var path string
	if guildID != "" {
		path = fmt.Sprintf("/applications/%s/guilds/%s/commands", applicationID, guildID)
	} else {
		path = fmt.Sprintf("/applications/%s/commands", applicationID)
	}

	if _, err := c.do(ctx, http.MethodPut, path, commands); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	if guildID != "" {
		log.Println("Registered guild slash commands")
	} else {
		log.Println("Registered global slash commands (can take time to appear)")
	}
	return nil
}
