// Package config loads the service configuration from the environment, optionally seeded from a .env file.
// Everything the services need to reach MongoDB, RabbitMQ and the filesystem is passed in explicitly from here.
package config
