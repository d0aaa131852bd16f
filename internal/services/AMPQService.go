// This file contains the implementation of AMPQService. This service is responsible for handling the communication
// between the converter and an AMPQ message broker, and thus the rest of the pipeline. Conversion jobs arrive on
// 'convert-in', either from the SfM worker or re-published by the web server, and every finished conversion is
// announced on 'convert-out'.
//
// This service expects a rabbitMQ AMPQ 0.9.1 broker to be reachable at the given URI. The service connects to the broker
// and declares the queues. A single consumer with a prefetch of 1 is run, so conversions happen one at a time.
//
// A go channel and waitgroup are used to manage the consumer, and the service can be gracefully shutdown with Shutdown.
// The consumer is tolerant to connection failures, and will attempt to reconnect every 5 seconds if the connection is lost.

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/NeRF-or-Nothing/sfm-converter/internal/common"
	"github.com/NeRF-or-Nothing/sfm-converter/internal/log"
	"github.com/NeRF-or-Nothing/sfm-converter/internal/models/scene"
)

// Queue names on the broker
const (
	ConvertInQueue  = "convert-in"
	ConvertOutQueue = "convert-out"
)

// ErrMalformedJob is returned for messages that can never be processed; they are rejected without requeue.
var ErrMalformedJob = errors.New("malformed conversion job")

// ConvertResult is published on 'convert-out' after every conversion.
type ConvertResult struct {
	SceneID       string `json:"id"`
	Status        string `json:"status"`
	OutputPath    string `json:"output_path,omitempty"`
	FrameCount    int    `json:"frame_count"`
	SkippedImages int    `json:"skipped_images"`
	Error         string `json:"error,omitempty"`
}

type AMPQService struct {
	uri       string
	converter *ConverterService
	logger    *log.Logger

	connection *amqp.Connection
	channel    *amqp.Channel
	// guards connection and channel
	mu sync.Mutex

	// used for reconnection and graceful shutdown
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewAMPQService connects to the broker and starts the 'convert-in' consumer as a goroutine.
func NewAMPQService(uri string, converter *ConverterService, logger *log.Logger) (*AMPQService, error) {
	service := newAMPQService(uri, converter, logger)

	if err := service.connect(); err != nil {
		return nil, err
	}

	service.wg.Add(1)
	go service.runConsumer(ConvertInQueue, service.processConvertJob)

	return service, nil
}

func newAMPQService(uri string, converter *ConverterService, logger *log.Logger) *AMPQService {
	return &AMPQService{
		uri:       uri,
		converter: converter,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// connect establishes a connection to the AMPQ message broker and declares the queues.
func (s *AMPQService) connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	timeout := time.Now().Add(time.Minute / 4)
	var (
		conn *amqp.Connection
		err  error
	)
	for time.Now().Before(timeout) {
		conn, err = amqp.Dial(s.uri)
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open a channel: %w", err)
	}

	// Declare queues with 1 hour consumer timeout
	for _, name := range []string{ConvertInQueue, ConvertOutQueue} {
		args := amqp.Table{
			"x-consumer-timeout": int64(time.Hour.Milliseconds()),
		}
		if _, err := ch.QueueDeclare(name, false, false, false, false, args); err != nil {
			conn.Close()
			return fmt.Errorf("failed to declare queue %s: %w", name, err)
		}
	}

	s.connection = conn
	s.channel = ch
	return nil
}

// runConsumer runs a consumer for the specified queue and consumption handler until Shutdown.
func (s *AMPQService) runConsumer(queueName string, processFunc func(amqp.Delivery) error) {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopChan:
			s.logger.Infof("Stopping %s consumer", queueName)
			return
		default:
		}

		if err := s.consume(queueName, processFunc); err != nil {
			s.logger.Errorf("Error in %s consumer: %v. Reconnecting in 5 seconds...", queueName, err)
			select {
			case <-s.stopChan:
				s.logger.Infof("Stopping %s consumer", queueName)
				return
			case <-time.After(5 * time.Second):
			}
		}
	}
}

// consume consumes messages from the specified queue and processes them using the provided function
func (s *AMPQService) consume(queueName string, processFunc func(amqp.Delivery) error) error {
	if err := s.ensureConnection(); err != nil {
		return fmt.Errorf("failed to ensure connection: %w", err)
	}

	s.mu.Lock()
	ch, err := s.connection.Channel()
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to open a channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}

	messages, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register a consumer: %w", err)
	}

	s.logger.Infof("Started consuming from %s", queueName)

	for {
		select {
		case <-s.stopChan:
			return nil
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("consumer channel closed")
			}
			err := processFunc(msg)
			switch {
			case err == nil:
				msg.Ack(false)
			case errors.Is(err, ErrMalformedJob):
				s.logger.Errorf("Rejecting message from %s: %v", queueName, err)
				msg.Reject(false)
			default:
				s.logger.Errorf("Error processing message from %s: %v", queueName, err)
				msg.Nack(false, true) // Negative acknowledge and requeue
			}
		}
	}
}

// ensureConnection ensures that the AMPQ connection is established
func (s *AMPQService) ensureConnection() error {
	s.mu.Lock()
	alive := s.connection != nil && !s.connection.IsClosed()
	s.mu.Unlock()
	if alive {
		return nil
	}

	s.logger.Info("Reconnecting to RabbitMQ...")
	return s.connect()
}

// Shutdown shuts down the AMPQ service
func (s *AMPQService) Shutdown() {
	s.logger.Info("Shutting down AMQP service...")
	close(s.stopChan)
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connection != nil {
		s.connection.Close()
	}
	s.logger.Info("AMQP service shut down")
}

// publish sends body as JSON to the named queue on the shared channel.
func (s *AMPQService) publish(ctx context.Context, queueName string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.channel == nil || s.channel.IsClosed() {
		return fmt.Errorf("channel to broker is closed")
	}
	return s.channel.PublishWithContext(ctx, "", queueName, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

// PublishConvertJob queues an already submitted scene for conversion on 'convert-in'.
func (s *AMPQService) PublishConvertJob(ctx context.Context, sceneID primitive.ObjectID) error {
	job, err := json.Marshal(map[string]string{"id": sceneID.Hex()})
	if err != nil {
		return fmt.Errorf("failed to marshal convert job: %w", err)
	}

	if err := s.publish(ctx, ConvertInQueue, job); err != nil {
		return fmt.Errorf("failed to publish convert job: %w", err)
	}

	s.logger.Infof("Convert job published with ID %s", sceneID.Hex())
	return nil
}

// processConvertJob processes a message from the 'convert-in' queue and announces the outcome on 'convert-out'.
//
// The expected message format is either a reference to a scene submitted through the web server:
//
//	{ "id": string (primitive.ObjectID.Hex()) }
//
// or a full job from the SfM worker:
//
//	{
//	    "id": string (optional),
//	    "scene_name": string,
//	    "scene_dir": string,
//	    "model_dir": string (optional, default sparse/0),
//	    "image_dir": string (optional, default images),
//	    "output_path": string (optional, default transforms.json)
//	}
func (s *AMPQService) processConvertJob(d amqp.Delivery) error {
	ctx := context.Background()

	job, assigned, err := decodeConvertJob(d.Body)
	if err != nil {
		return err
	}

	err = s.convertAndAnnounce(ctx, job)
	if err != nil && assigned && !errors.Is(err, ErrMalformedJob) {
		// Retry under the assigned ID so the redelivery reuses the scene record created by this attempt.
		return s.republishConvertJob(ctx, job, err)
	}
	return err
}

func (s *AMPQService) convertAndAnnounce(ctx context.Context, job *common.ConvertRequest) error {
	result, err := s.runConvertJob(ctx, job)
	if err != nil {
		return err
	}

	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal convert result: %w", err)
	}
	if err := s.publish(ctx, ConvertOutQueue, body); err != nil {
		return fmt.Errorf("failed to publish convert result: %w", err)
	}

	s.logger.Infof("Convert result for %s published: %s", result.SceneID, result.Status)
	return nil
}

// republishConvertJob puts job back on 'convert-in' after a failed attempt. The failed delivery is acked only
// when the copy was published; otherwise cause is returned and the original is requeued.
func (s *AMPQService) republishConvertJob(ctx context.Context, job *common.ConvertRequest, cause error) error {
	body, err := json.Marshal(job)
	if err != nil {
		return cause
	}
	if err := s.publish(ctx, ConvertInQueue, body); err != nil {
		s.logger.Errorf("Failed to republish convert job %s: %v", job.ID, err)
		return cause
	}
	s.logger.Infof("Convert job %s failed (%v), republished for retry", job.ID, cause)
	return nil
}

// decodeConvertJob parses a 'convert-in' message. A full job without an ID is given one, reported by assigned,
// so that every attempt at the job addresses the same scene record.
func decodeConvertJob(body []byte) (job *common.ConvertRequest, assigned bool, err error) {
	job = &common.ConvertRequest{}
	if err := json.Unmarshal(body, job); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrMalformedJob, err)
	}
	if job.ID == "" && job.SceneDir != "" {
		job.ID = primitive.NewObjectID().Hex()
		assigned = true
	}
	return job, assigned, nil
}

// handleConvertJob decodes one job and runs it.
func (s *AMPQService) handleConvertJob(ctx context.Context, body []byte) (*ConvertResult, error) {
	job, _, err := decodeConvertJob(body)
	if err != nil {
		return nil, err
	}
	return s.runConvertJob(ctx, job)
}

// runConvertJob submits a job if needed, and runs it.
func (s *AMPQService) runConvertJob(ctx context.Context, job *common.ConvertRequest) (*ConvertResult, error) {
	s.logger.Debug("Processing convert job: ", *job)

	var sceneID primitive.ObjectID
	if job.ID != "" && job.SceneDir == "" {
		// A bare ID refers to a scene that was submitted through the web server.
		id, err := primitive.ObjectIDFromHex(job.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid ID format: %v", ErrMalformedJob, err)
		}
		sceneID = id
	} else {
		submitted, err := s.converter.Submit(ctx, job)
		if err != nil {
			if IsRequestError(err) {
				return nil, fmt.Errorf("%w: %v", ErrMalformedJob, err)
			}
			return nil, err
		}
		sceneID = submitted.ID
	}

	finished, err := s.converter.Run(ctx, sceneID)
	if err != nil {
		if errors.Is(err, scene.ErrSceneNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrMalformedJob, err)
		}
		return nil, err
	}

	return &ConvertResult{
		SceneID:       finished.ID.Hex(),
		Status:        finished.Status,
		OutputPath:    finished.OutputPath,
		FrameCount:    finished.FrameCount,
		SkippedImages: len(finished.SkippedImages),
		Error:         finished.Error,
	}, nil
}
