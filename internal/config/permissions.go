package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"repo-freeze-service/internal/domain"
)

// PermissionsConfig is the snapshot of user permissions loaded from YAML.
// It is loaded once per process lifetime and treated as immutable.
//
// Example file:
//
//	installations:
//	  "12345":
//	    installation_id: "12345"
//	    default_permissions:
//	      role: contributor
//	    global_users:
//	      admin_user:
//	        role: admin
//	        can_freeze: true
//	        can_unfreeze: true
//	        can_emergency_override: true
//	    repositories:
//	      "owner/repo":
//	        repository: "owner/repo"
//	        users:
//	          maintainer_user:
//	            role: maintainer
//	            can_freeze: true
//	            can_unfreeze: true
type PermissionsConfig struct {
	Installations map[string]InstallationConfig `yaml:"installations"`
}

// InstallationConfig holds the permission layers of one installation.
type InstallationConfig struct {
	InstallationID     string                      `yaml:"installation_id"`
	DefaultPermissions *UserPermissions            `yaml:"default_permissions"`
	GlobalUsers        map[string]UserPermissions  `yaml:"global_users"`
	Repositories       map[string]RepositoryConfig `yaml:"repositories"`
}

// RepositoryConfig holds per-repository user permissions.
type RepositoryConfig struct {
	Repository string                     `yaml:"repository"`
	Users      map[string]UserPermissions `yaml:"users"`
}

// UserPermissions is one configured permission entry.
type UserPermissions struct {
	Role                 string `yaml:"role"`
	CanFreeze            bool   `yaml:"can_freeze"`
	CanUnfreeze          bool   `yaml:"can_unfreeze"`
	CanEmergencyOverride bool   `yaml:"can_emergency_override"`
}

// ToRole converts the configured role string into a domain role.
func (u UserPermissions) ToRole() (domain.Role, error) {
	return domain.ParseRole(u.Role)
}

// LoadPermissions reads and validates a permissions file.
func LoadPermissions(path string) (*PermissionsConfig, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read permissions file: %w", err)
	}
	return ParsePermissions(content)
}

// ParsePermissions parses and validates YAML permission configuration.
func ParsePermissions(content []byte) (*PermissionsConfig, error) {
	var cfg PermissionsConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse permissions file: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *PermissionsConfig) validate() error {
	for key, installation := range c.Installations {
		if key != installation.InstallationID {
			return fmt.Errorf("installation key %q does not match installation_id %q", key, installation.InstallationID)
		}
		if installation.DefaultPermissions != nil {
			if _, err := installation.DefaultPermissions.ToRole(); err != nil {
				return err
			}
		}
		for _, perms := range installation.GlobalUsers {
			if _, err := perms.ToRole(); err != nil {
				return err
			}
		}
		for repoKey, repo := range installation.Repositories {
			if repoKey != repo.Repository {
				return fmt.Errorf("repository key %q does not match repository name %q", repoKey, repo.Repository)
			}
			for _, perms := range repo.Users {
				if _, err := perms.ToRole(); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Lookup walks the priority chain for an actor: repository-specific entry,
// then installation-wide entry, then installation default. Returns nil when
// no layer matches.
func (c *PermissionsConfig) Lookup(installationID int64, repository, actor string) *UserPermissions {
	installation, ok := c.Installations[fmt.Sprintf("%d", installationID)]
	if !ok {
		return nil
	}

	if repoCfg, ok := installation.Repositories[repository]; ok {
		if perms, ok := repoCfg.Users[actor]; ok {
			return &perms
		}
	}

	if perms, ok := installation.GlobalUsers[actor]; ok {
		return &perms
	}

	return installation.DefaultPermissions
}
