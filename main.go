package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chatlinkAPI/handlers"
	"chatlinkAPI/internal/authstate"
	"chatlinkAPI/internal/directory"
	"chatlinkAPI/internal/notification"
	"chatlinkAPI/middleware"
	"chatlinkAPI/services"
)

var (
	firebaseApp      *firebase.App
	authClient       *auth.Client
	store            *directory.FirestoreStore
	authBroker       *authstate.Broker
	sessionTracker   *middleware.SessionTracker
	userService      *services.UserService
	friendService    *services.FriendService
	reconcileService *services.ReconcileService
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	creds, err := notification.FirebaseCredentials("./serviceAccountKey.json")
	if err != nil {
		log.Fatal("Failed to resolve Firebase credentials:", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	firebaseApp, err = firebase.NewApp(ctx, nil, creds)
	if err != nil {
		log.Fatal("Failed to initialize Firebase app:", err)
	}

	authClient, err = firebaseApp.Auth(ctx)
	if err != nil {
		log.Fatal("Failed to initialize Firebase auth client:", err)
	}
	log.Println("Firebase Auth initialized successfully")

	store, err = directory.NewFirestoreStore(ctx, firebaseApp)
	if err != nil {
		log.Fatal("Failed to initialize Firestore:", err)
	}
	log.Println("Successfully connected to Firestore")

	authBroker = authstate.NewBroker()
	sessionTracker = middleware.NewSessionTracker(authBroker, 30*time.Minute)

	userService = services.NewUserService(store)
	friendService = services.NewFriendService(store)
	reconcileService = services.NewReconcileService(store)

	fcmService, err := notification.NewFCMService(firebaseApp)
	if err != nil {
		log.Printf("Warning: Could not initialize FCM: %v", err)
	} else {
		friendService.SetPushProvider(fcmService)
		log.Println("FCM Push Provider initialized successfully")
	}

	middleware.InitPrometheus()
}

func main() {
	defer func() {
		log.Println("Closing Firestore client...")
		store.Close()
	}()

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService)
	friendHandler := handlers.NewFriendHandler(friendService, userService)

	r := mux.NewRouter()

	standardRouter := r.PathPrefix("/").Subrouter()

	go middleware.CleanupVisitors()
	go sessionTracker.CleanupSessions()

	unsubscribe := authBroker.Subscribe(func(id *authstate.Identity) {
		if id == nil {
			log.Println("Auth state: session ended")
			return
		}
		log.Printf("Auth state: session active for %s", id.UID)
	})
	defer unsubscribe()

	reconcileCtx, stopReconciler := context.WithCancel(context.Background())
	defer stopReconciler()
	go reconcileService.Run(reconcileCtx, 15*time.Minute)

	standardRouter.Use(middleware.RateLimitMiddleware)
	standardRouter.Use(middleware.MonitorMiddleware)

	standardRouter.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))

	standardRouter.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "chatlink-api"}`))
	}).Methods("GET")

	// -------------------------------------------------------------------------
	// API V1 SUBROUTER
	// -------------------------------------------------------------------------
	api := standardRouter.PathPrefix("/api/v1").Subrouter()

	// -------------------------------------------------------------------------
	// PROTECTED ROUTES (REQUIRE AUTH HEADER)
	// -------------------------------------------------------------------------
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.FirebaseAuthMiddleware(authClient, sessionTracker))

	protected.HandleFunc("/user", userHandler.GetProfile).Methods("GET")
	protected.HandleFunc("/user/update-profile", userHandler.UpdateProfile).Methods("PUT")
	protected.HandleFunc("/user/register-device", userHandler.RegisterDevice).Methods("POST")

	protected.HandleFunc("/user/lookup", friendHandler.LookupUser).Methods("GET")
	protected.HandleFunc("/user/friends", friendHandler.GetFriends).Methods("GET")
	protected.HandleFunc("/user/friends", friendHandler.RemoveFriend).Methods("DELETE")
	protected.HandleFunc("/user/friends/requests", friendHandler.ListIncomingRequests).Methods("GET")
	protected.HandleFunc("/user/friends/requests", friendHandler.SendFriendRequest).Methods("POST")
	protected.HandleFunc("/user/friends/requests/{requestID}", friendHandler.RespondToFriendRequest).Methods("PUT")

	// CORS configuration
	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3333"
	}
	port = ":" + port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	stopReconciler()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server shutdown complete")
}
